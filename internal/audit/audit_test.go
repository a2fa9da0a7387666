package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecordEncryptsDetails(t *testing.T) {
	store := NewMemStore()
	rec := NewRecorder(store, "log-secret")

	details := map[string]any{"payload": map[string]any{"sensitivity": "Confidential"}, "allowed": false}
	rec.Record(context.Background(), "id-1", "Alice", "MAC_ACCESS_ATTEMPT", details)

	events := store.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Action != "MAC_ACCESS_ATTEMPT" || ev.ActorID != "id-1" || ev.ActorName != "Alice" {
		t.Fatalf("unexpected event header: %+v", ev)
	}
	if ev.ID == "" || ev.IV == "" {
		t.Fatalf("missing id or iv: %+v", ev)
	}
	if ev.Details == "" {
		t.Fatal("details must be stored")
	}
	raw, _ := json.Marshal(details)
	if ev.Details == string(raw) {
		t.Fatal("details must never be stored in plaintext")
	}

	plain, err := rec.Open(&ev)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(plain, &got); err != nil {
		t.Fatalf("decrypted payload is not JSON: %v", err)
	}
	if got["allowed"] != false {
		t.Fatalf("round trip mismatch: %v", got)
	}
}

func TestRecordEncryptsEmptyDetails(t *testing.T) {
	store := NewMemStore()
	rec := NewRecorder(store, "log-secret")

	rec.Record(context.Background(), "id-1", "Alice", "MFA_ENABLED", nil)

	events := store.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Details == "{}" || events[0].Details == "" {
		t.Fatal("empty details must still be encrypted")
	}
	plain, err := rec.Open(&events[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(plain) != "{}" {
		t.Fatalf("expected empty object, got %q", plain)
	}
}

func TestRecordPreservesActorOrder(t *testing.T) {
	store := NewMemStore()
	rec := NewRecorder(store, "log-secret")

	for i := 0; i < 5; i++ {
		rec.Record(context.Background(), "id-1", "Alice", fmt.Sprintf("ACTION_%d", i), nil)
	}
	events := store.Events()
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Action != fmt.Sprintf("ACTION_%d", i) {
			t.Fatalf("event %d out of order: %s", i, ev.Action)
		}
	}
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, ev *Event) error {
	return errors.New("disk full")
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	rec := NewRecorder(failingStore{}, "log-secret")
	// Must not panic or propagate.
	rec.Record(context.Background(), "id-1", "Alice", "LOGIN_SUCCESS", map[string]any{"mfa": true})
}

func TestRecordSwallowsUnserializableDetails(t *testing.T) {
	store := NewMemStore()
	rec := NewRecorder(store, "log-secret")
	rec.Record(context.Background(), "id-1", "Alice", "LOGIN_SUCCESS", func() {})
	if len(store.Events()) != 0 {
		t.Fatal("unserializable details must drop the event, not store garbage")
	}
}

func TestPGStoreAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec("insert into audit_events").
		WithArgs("ev-1", "id-1", "Alice", "LOGIN_SUCCESS", "deadbeef", "cafe", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPGStore(db)
	err = store.Append(context.Background(), &Event{
		ID: "ev-1", ActorID: "id-1", ActorName: "Alice",
		Action: "LOGIN_SUCCESS", Details: "deadbeef", IV: "cafe", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
