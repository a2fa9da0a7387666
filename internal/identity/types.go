package identity

import "time"

// Role is the closed set of roles known to the service.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleEmployee Role = "Employee"
	RoleHR       Role = "HR"
)

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee, RoleHR:
		return true
	}
	return false
}

// Account status values.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Sensitivity labels resources for mandatory access control.
// Levels are ordered: Public < Internal < Confidential.
type Sensitivity string

const (
	SensitivityPublic       Sensitivity = "Public"
	SensitivityInternal     Sensitivity = "Internal"
	SensitivityConfidential Sensitivity = "Confidential"
)

// Level maps a sensitivity label to its ordered numeric level.
// Unknown labels return 0, which no clearance satisfies under a >= check
// against known levels but is guarded by Valid at the request boundary.
func (s Sensitivity) Level() int {
	switch s {
	case SensitivityPublic:
		return 1
	case SensitivityInternal:
		return 2
	case SensitivityConfidential:
		return 3
	}
	return 0
}

// Valid reports whether the label is one of the three defined levels.
func (s Sensitivity) Valid() bool {
	return s.Level() > 0
}

// Identity is an authenticated principal. PasswordHash and MFASecret never
// leave the authentication boundary; Redacted strips them before an identity
// is handed back to callers.
type Identity struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	ClearanceLevel int        `json:"clearance_level"`
	Department     string     `json:"department"`
	Status         string     `json:"status"`
	LoginAttempts  int        `json:"-"`
	LockUntil      *time.Time `json:"-"`
	MFASecret      string     `json:"-"`
	MFAEnabled     bool       `json:"mfa_enabled"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Redacted returns a copy safe to expose outside the authentication
// component: credential and MFA secret material removed.
func (i Identity) Redacted() Identity {
	i.PasswordHash = ""
	i.MFASecret = ""
	return i
}

// Locked reports whether the identity is locked out at the given instant.
func (i Identity) Locked(now time.Time) bool {
	return i.LockUntil != nil && now.Before(*i.LockUntil)
}

// Resource is an access-controlled object for MAC and DAC checks.
type Resource struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Sensitivity Sensitivity `json:"sensitivity_level"`
	OwnerID     string      `json:"owner_id"`
	SharedWith  []string    `json:"shared_with"`
	CreatedAt   time.Time   `json:"created_at"`
}
