package identity

import (
	"context"
	"strings"
	"sync"

	"accesslab.dev/internal/ids"
)

var _ Store = (*MemStore)(nil)
var _ ResourceStore = (*MemResourceStore)(nil)

// MemStore is an in-memory Store used for tests and DSN-less runs.
type MemStore struct {
	mu      sync.RWMutex
	byID    map[string]*Identity
	byEmail map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:    make(map[string]*Identity),
		byEmail: make(map[string]string),
	}
}

func (s *MemStore) Create(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if id.ID == "" {
		id.ID = ids.New()
	}
	id.Email = email
	cp := *id
	s.byID[id.ID] = &cp
	s.byEmail[email] = id.ID
	return nil
}

func (s *MemStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemStore) Save(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id.ID]; !ok {
		return ErrNotFound
	}
	cp := *id
	s.byID[id.ID] = &cp
	return nil
}

// MemResourceStore is an in-memory ResourceStore.
type MemResourceStore struct {
	mu   sync.RWMutex
	byID map[string]*Resource
	keys []string
}

func NewMemResourceStore(resources ...*Resource) *MemResourceStore {
	s := &MemResourceStore{byID: make(map[string]*Resource)}
	for _, r := range resources {
		s.Add(r)
	}
	return s
}

func (s *MemResourceStore) Add(r *Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = ids.New()
	}
	cp := *r
	if _, ok := s.byID[r.ID]; !ok {
		s.keys = append(s.keys, r.ID)
	}
	s.byID[r.ID] = &cp
}

func (s *MemResourceStore) FindByID(ctx context.Context, id string) (*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemResourceStore) List(ctx context.Context) ([]*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Resource, 0, len(s.keys))
	for _, id := range s.keys {
		cp := *s.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}
