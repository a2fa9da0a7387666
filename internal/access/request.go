package access

import "accesslab.dev/internal/identity"

// Model names one of the five access-control models.
type Model string

const (
	ModelMAC   Model = "MAC"
	ModelDAC   Model = "DAC"
	ModelRBAC  Model = "RBAC"
	ModelRuBAC Model = "RuBAC"
	ModelABAC  Model = "ABAC"
)

// Request is the closed set of access-check payloads. The unexported method
// seals the interface: a new model is a compile-time addition to this
// package, not a stringly-typed extension point.
type Request interface {
	Model() Model
	payload() map[string]any
}

// MACRequest checks an ordered clearance against a sensitivity label.
type MACRequest struct {
	Sensitivity identity.Sensitivity
}

func (r MACRequest) Model() Model { return ModelMAC }
func (r MACRequest) payload() map[string]any {
	return map[string]any{"sensitivity": string(r.Sensitivity)}
}

// DACRequest checks ownership or explicit sharing of a resource.
type DACRequest struct {
	ResourceID string
}

func (r DACRequest) Model() Model { return ModelDAC }
func (r DACRequest) payload() map[string]any {
	return map[string]any{"resource_id": r.ResourceID}
}

// RBACRequest checks the subject's role against a required role.
type RBACRequest struct {
	RequiredRole identity.Role
}

func (r RBACRequest) Model() Model { return ModelRBAC }
func (r RBACRequest) payload() map[string]any {
	return map[string]any{"required_role": string(r.RequiredRole)}
}

// RuBACRequest checks the contextual time-of-day rule. It carries no payload;
// the clock is the engine's.
type RuBACRequest struct{}

func (r RuBACRequest) Model() Model             { return ModelRuBAC }
func (r RuBACRequest) payload() map[string]any  { return map[string]any{} }

// ABACRequest checks a named action against the subject attribute policy.
type ABACRequest struct {
	Action string
}

func (r ABACRequest) Model() Model { return ModelABAC }
func (r ABACRequest) payload() map[string]any {
	return map[string]any{"action": r.Action}
}
