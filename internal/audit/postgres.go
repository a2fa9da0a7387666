package audit

import (
	"context"
	"database/sql"
	"sync"
)

var _ Store = (*PGStore)(nil)

// PGStore appends events to PostgreSQL. The table has no update or delete
// path in this codebase; immutability is also enforced by a trigger in the
// schema migration.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, ev *Event) error {
	_, err := s.db.ExecContext(ctx,
		`insert into audit_events(id, actor_id, actor_name, action, encrypted_details, iv, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		ev.ID, ev.ActorID, ev.ActorName, ev.Action, ev.Details, ev.IV, ev.CreatedAt,
	)
	return err
}

// MemStore collects events in memory for tests and DSN-less runs.
type MemStore struct {
	mu     sync.Mutex
	events []Event
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(ctx context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

// Events returns a snapshot in append order.
func (s *MemStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
