package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the identity or resource does not exist.
	ErrNotFound = errors.New("identity: not found")
	// ErrAlreadyExists indicates a duplicate email on create.
	ErrAlreadyExists = errors.New("identity: already exists")
	// ErrUnavailable indicates the backing store could not be reached.
	// Callers apply their own timeout/retry policy on top of it.
	ErrUnavailable = errors.New("identity: store unavailable")
)

// Store manages identities. Save is a full-record write; the login path uses
// it read-modify-write for the attempt counter and lock window, accepting
// eventual consistency of the counter under concurrent logins.
type Store interface {
	Create(ctx context.Context, id *Identity) error
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Save(ctx context.Context, id *Identity) error
}

// ResourceStore looks up access-controlled resources.
type ResourceStore interface {
	FindByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context) ([]*Resource, error)
}
