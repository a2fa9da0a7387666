package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"accesslab.dev/internal/access"
	"accesslab.dev/internal/audit"
	"accesslab.dev/internal/authn"
	"accesslab.dev/internal/crypto"
	"accesslab.dev/internal/identity"
)

type fixture struct {
	api   *API
	store *identity.MemStore
	sink  *audit.MemStore
}

func newAPI(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := identity.NewMemStore()
	resources := identity.NewMemResourceStore()
	sink := audit.NewMemStore()
	recorder := audit.NewRecorder(sink, "log-secret")

	clock := func() time.Time { return now }
	authnSvc, err := authn.NewService(store, recorder, authn.WithClock(clock))
	if err != nil {
		t.Fatalf("authn.NewService: %v", err)
	}
	engine, err := access.NewEngine(resources, recorder, access.WithClock(clock))
	if err != nil {
		t.Fatalf("access.NewEngine: %v", err)
	}
	sessions, err := NewSessions("test-session-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	api := New(authnSvc, engine, resources, sessions, ReadyProbe{}, "test")
	return &fixture{api: api, store: store, sink: sink}
}

func seed(t *testing.T, store *identity.MemStore, clearance int) *identity.Identity {
	t.Helper()
	hash, err := crypto.HashPassword("Val1d!pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	id := &identity.Identity{
		Name:           "Alice",
		Email:          "alice@example.com",
		PasswordHash:   hash,
		Role:           identity.RoleEmployee,
		ClearanceLevel: clearance,
		Department:     "General",
		Status:         identity.StatusActive,
	}
	if err := store.Create(context.Background(), id); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, f *fixture) string {
	t.Helper()
	rec := doJSON(t, f.api.Handler(), http.MethodPost, "/v1/login", "",
		map[string]any{"email": "alice@example.com", "password": "Val1d!pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected session token")
	}
	return resp.Token
}

func TestLoginAndAccessCheck(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	f := newAPI(t, now)
	seed(t, f.store, 1)
	token := login(t, f)

	// Low clearance against Confidential denies with a "too low" reason.
	rec := doJSON(t, f.api.Handler(), http.MethodPost, "/v1/access/check", token,
		map[string]any{"model": "MAC", "sensitivity": "Confidential"})
	if rec.Code != http.StatusOK {
		t.Fatalf("access check status = %d: %s", rec.Code, rec.Body.String())
	}
	var decision access.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decision.Allowed || !strings.Contains(decision.Reason, "too low") {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	// Same subject against Public allows.
	rec = doJSON(t, f.api.Handler(), http.MethodPost, "/v1/access/check", token,
		map[string]any{"model": "MAC", "sensitivity": "Public"})
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Public must be allowed: %+v", decision)
	}
}

func TestAccessCheckRequiresSession(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	f := newAPI(t, now)

	rec := doJSON(t, f.api.Handler(), http.MethodPost, "/v1/access/check", "",
		map[string]any{"model": "RuBAC"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}
}

func TestLoginLockoutTag(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	f := newAPI(t, now)
	seed(t, f.store, 1)
	handler := f.api.Handler()

	var rec *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		rec = doJSON(t, handler, http.MethodPost, "/v1/login", "",
			map[string]any{"email": "alice@example.com", "password": "wrong"})
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("fifth failure status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["tag"] != tagAccountLocked {
		t.Fatalf("expected %s tag, got %v", tagAccountLocked, resp["tag"])
	}
}

func TestLoginInvalidCredentialsTag(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	f := newAPI(t, now)
	seed(t, f.store, 1)

	rec := doJSON(t, f.api.Handler(), http.MethodPost, "/v1/login", "",
		map[string]any{"email": "alice@example.com", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["tag"] != tagInvalidCredentials {
		t.Fatalf("expected %s tag, got %v", tagInvalidCredentials, resp["tag"])
	}
}

func TestRegisterThenLogin(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	f := newAPI(t, now)
	handler := f.api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/register", "",
		map[string]any{"name": "Bob", "email": "bob@example.com", "password": "G00d!pass"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/register", "",
		map[string]any{"name": "Bob", "email": "bob@example.com", "password": "G00d!pass"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/login", "",
		map[string]any{"email": "bob@example.com", "password": "G00d!pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	f := newAPI(t, now)

	rec := doJSON(t, f.api.Handler(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "accesslab-api") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
