package authn

import (
	"errors"
	"fmt"
	"time"
)

// Authentication outcomes callers are expected to branch on. Lockout and
// MFA-required are control-flow-significant at this boundary, not generic
// failures.
var (
	// ErrInvalidCredentials covers unknown email and wrong password alike,
	// so the response never reveals whether an account exists.
	ErrInvalidCredentials = errors.New("authn: invalid credentials")

	// ErrAccountLocked is the sentinel matched by errors.Is for any lockout;
	// the concrete error is a *LockedError carrying the unlock time.
	ErrAccountLocked = errors.New("authn: account locked")

	// ErrMFARequired signals that the password verified but a second factor
	// must be resubmitted together with it.
	ErrMFARequired = errors.New("authn: mfa code required")

	// ErrInvalidMFACode signals a failed second factor. It never increments
	// the password lockout counter; the two signals are intentionally kept
	// separate so TOTP guesses cannot drive password lockout bookkeeping.
	ErrInvalidMFACode = errors.New("authn: invalid mfa code")

	// ErrInvalidInput marks caller mistakes (policy violations, malformed
	// fields), as opposed to failed authentication.
	ErrInvalidInput = errors.New("authn: invalid input")
)

// LockedError reports a lockout together with when it expires.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("authn: account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }
