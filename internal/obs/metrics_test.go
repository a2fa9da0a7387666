package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountDecision(t *testing.T) {
	before := testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("MAC", "deny"))
	CountDecision("MAC", false)
	after := testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("MAC", "deny"))
	if after != before+1 {
		t.Fatalf("deny counter = %v, want %v", after, before+1)
	}

	before = testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("RBAC", "allow"))
	CountDecision("RBAC", true)
	after = testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("RBAC", "allow"))
	if after != before+1 {
		t.Fatalf("allow counter = %v, want %v", after, before+1)
	}
}

func TestCountLogin(t *testing.T) {
	before := testutil.ToFloat64(loginAttemptsTotal.WithLabelValues("locked"))
	CountLogin("locked")
	after := testutil.ToFloat64(loginAttemptsTotal.WithLabelValues("locked"))
	if after != before+1 {
		t.Fatalf("locked counter = %v, want %v", after, before+1)
	}
}

func TestInstrumentCapturesStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/login", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/login", "418"))
	if got < 1 {
		t.Fatalf("request counter = %v", got)
	}
}
