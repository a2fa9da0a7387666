// Package audit appends encrypted, immutable security events. Appends are
// best-effort: a logging failure is reported on the service log and swallowed,
// never surfaced to the operation that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"accesslab.dev/internal/crypto"
	"accesslab.dev/internal/ids"
	"accesslab.dev/internal/obs"
)

// Well-known action tags. Access decisions compose theirs per model,
// e.g. MAC_ACCESS_ATTEMPT.
const (
	ActionLoginSuccess   = "LOGIN_SUCCESS"
	ActionUserRegistered = "USER_REGISTERED"
	ActionMFAEnabled     = "MFA_ENABLED"
	ActionProfileUpdated = "PROFILE_UPDATED"
)

// Event is one appended audit record. Details are stored only as ciphertext;
// an event is never updated or deleted once appended.
type Event struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	Action    string    `json:"action"`
	Details   string    `json:"encrypted_details"`
	IV        string    `json:"iv"`
	CreatedAt time.Time `json:"created_at"`
}

// Store appends immutable events.
type Store interface {
	Append(ctx context.Context, ev *Event) error
}

// Recorder encrypts event details with a process-wide key derived once from
// the configured secret, then appends through a Store. Appends run
// synchronously under a single mutex, which keeps events from one actor in
// call order.
type Recorder struct {
	store  Store
	secret string
	now    func() time.Time

	keyOnce sync.Once
	key     []byte

	mu sync.Mutex
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder. The encryption key is derived lazily on
// first use and cached for the process lifetime.
func NewRecorder(store Store, logSecret string, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, secret: logSecret, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) encryptionKey() []byte {
	r.keyOnce.Do(func() {
		r.key = crypto.DeriveKey(r.secret)
	})
	return r.key
}

// Record serializes details to JSON, encrypts them and appends one event.
// A nil details value is recorded as an encrypted empty object; nothing is
// ever stored in plaintext. Failures are swallowed after a best-effort
// error line.
func (r *Recorder) Record(ctx context.Context, actorID, actorName, action string, details any) {
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		r.reportFailure(action, err)
		return
	}
	ciphertext, iv, err := crypto.Encrypt(r.encryptionKey(), payload)
	if err != nil {
		r.reportFailure(action, err)
		return
	}
	ev := &Event{
		ID:        ids.New(),
		ActorID:   actorID,
		ActorName: actorName,
		Action:    action,
		Details:   ciphertext,
		IV:        iv,
		CreatedAt: r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Append(ctx, ev); err != nil {
		r.reportFailure(action, err)
	}
}

// Open decrypts the details of an event recorded by this process.
func (r *Recorder) Open(ev *Event) ([]byte, error) {
	return crypto.Decrypt(r.encryptionKey(), ev.Details, ev.IV)
}

func (r *Recorder) reportFailure(action string, err error) {
	obs.LogRequest(map[string]any{
		"ts":     r.now().UTC().Format(time.RFC3339Nano),
		"level":  "error",
		"msg":    "audit append failed",
		"action": action,
		"error":  err.Error(),
	})
}
