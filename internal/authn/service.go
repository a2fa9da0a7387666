// Package authn implements the login lifecycle: password verification,
// brute-force lockout, the TOTP second factor and MFA enrollment.
package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"accesslab.dev/internal/audit"
	"accesslab.dev/internal/crypto"
	"accesslab.dev/internal/identity"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultTOTPSkew         = 1
)

// Service drives the authentication state machine against an identity store.
type Service struct {
	store identity.Store
	audit *audit.Recorder
	now   func() time.Time

	lockoutThreshold int
	lockoutDuration  time.Duration
	totpSkew         uint
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLockoutPolicy overrides the attempt threshold and lock duration.
func WithLockoutPolicy(threshold int, duration time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.lockoutThreshold = threshold
		}
		if duration > 0 {
			s.lockoutDuration = duration
		}
	}
}

// WithTOTPSkew overrides the tolerated clock drift in 30-second steps.
func WithTOTPSkew(steps uint) Option {
	return func(s *Service) {
		s.totpSkew = steps
	}
}

// NewService constructs the authentication service.
func NewService(store identity.Store, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("authn: identity store is required")
	}
	if recorder == nil {
		return nil, errors.New("authn: audit recorder is required")
	}
	s := &Service{
		store:            store,
		audit:            recorder,
		now:              time.Now,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutDuration:  defaultLockoutDuration,
		totpSkew:         defaultTOTPSkew,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login runs one authentication attempt. mfaCode may be empty; when the
// identity has MFA enabled the password and code must be submitted together,
// there is no server-side pending state between the two.
//
// Counter and lock mutations are persisted before a verdict is returned; a
// persist failure fails the attempt closed. A failed second factor does not
// touch the attempt counter.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (*identity.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	id, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			// Unknown account: same generic answer as a bad password, and
			// no state to mutate.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if id.Locked(now) {
		// Fail fast; the password is not even checked while locked.
		return nil, &LockedError{Until: *id.LockUntil}
	}

	if !crypto.VerifyPassword(id.PasswordHash, password) {
		id.LoginAttempts++
		var verdict error = ErrInvalidCredentials
		if id.LoginAttempts >= s.lockoutThreshold {
			until := now.Add(s.lockoutDuration)
			id.LockUntil = &until
			verdict = &LockedError{Until: until}
		}
		if err := s.store.Save(ctx, id); err != nil {
			// Bookkeeping could not be saved: fail closed rather than
			// let further attempts go uncounted.
			return nil, err
		}
		return nil, verdict
	}

	if id.MFAEnabled {
		if strings.TrimSpace(mfaCode) == "" {
			return nil, ErrMFARequired
		}
		if !crypto.VerifyTOTP(mfaCode, id.MFASecret, now, s.totpSkew) {
			return nil, ErrInvalidMFACode
		}
	}

	mutated := id.LoginAttempts != 0 || id.LockUntil != nil
	id.LoginAttempts = 0
	id.LockUntil = nil
	if mutated {
		if err := s.store.Save(ctx, id); err != nil {
			return nil, err
		}
	}

	s.audit.Record(ctx, id.ID, id.Name, audit.ActionLoginSuccess, map[string]any{
		"mfa_used": id.MFAEnabled,
	})
	resolved := id.Redacted()
	return &resolved, nil
}

// Register creates a new identity with the default attribute set after
// enforcing the password policy.
func (s *Service) Register(ctx context.Context, name, email, password string) (*identity.Identity, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return nil, fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	id := &identity.Identity{
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           identity.RoleEmployee,
		ClearanceLevel: 1,
		Department:     "General",
		Status:         identity.StatusActive,
	}
	if err := s.store.Create(ctx, id); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, id.ID, id.Name, audit.ActionUserRegistered, map[string]any{
		"email": email,
	})
	resolved := id.Redacted()
	return &resolved, nil
}

// UpdateProfile renames the identity and optionally rotates the password,
// re-validating the policy when it does.
func (s *Service) UpdateProfile(ctx context.Context, identityID, name, newPassword string) error {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidInput)
	}

	id, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	id.Name = name
	if strings.TrimSpace(newPassword) != "" {
		if err := validatePassword(newPassword); err != nil {
			return err
		}
		hash, err := crypto.HashPassword(newPassword)
		if err != nil {
			return err
		}
		id.PasswordHash = hash
	}
	if err := s.store.Save(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, id.ID, id.Name, audit.ActionProfileUpdated, nil)
	return nil
}

// GenerateMFASecret returns a fresh TOTP secret bound to the identity's
// email. Nothing is persisted: the caller must prove possession of the
// secret through EnableMFA before it takes effect.
func (s *Service) GenerateMFASecret(ctx context.Context, identityID string) (secret, account string, err error) {
	id, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		return "", "", err
	}
	secret, err = crypto.GenerateTOTPSecret(id.Email)
	if err != nil {
		return "", "", err
	}
	return secret, id.Email, nil
}

// EnableMFA commits the secret produced by GenerateMFASecret. The proof code
// must verify against the secret before anything is persisted.
func (s *Service) EnableMFA(ctx context.Context, identityID, secret, proofCode string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidInput)
	}
	if !crypto.VerifyTOTP(proofCode, secret, s.now(), s.totpSkew) {
		return ErrInvalidMFACode
	}

	id, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	id.MFASecret = secret
	id.MFAEnabled = true
	if err := s.store.Save(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, id.ID, id.Name, audit.ActionMFAEnabled, nil)
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	switch {
	case !upper:
		return fmt.Errorf("%w: password must contain an uppercase letter", ErrInvalidInput)
	case !lower:
		return fmt.Errorf("%w: password must contain a lowercase letter", ErrInvalidInput)
	case !digit:
		return fmt.Errorf("%w: password must contain a number", ErrInvalidInput)
	case !special:
		return fmt.Errorf("%w: password must contain a special character", ErrInvalidInput)
	}
	return nil
}
