// Package access evaluates MAC, DAC, RBAC, RuBAC and ABAC requests against a
// resolved identity and writes one audit event per evaluation.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"accesslab.dev/internal/audit"
	"accesslab.dev/internal/identity"
	"accesslab.dev/internal/obs"
)

// ErrInvalidRequest marks a malformed request (missing or unknown fields).
// It is the caller's fault and is never recorded as a policy decision.
var ErrInvalidRequest = errors.New("access: invalid request")

// Decision is the outcome of one policy evaluation. Reason is deterministic
// per policy branch.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

const (
	defaultHoursOpen  = 9
	defaultHoursClose = 17
)

// ABAC actions known to the policy table.
const (
	ActionViewSalary   = "VIEW_SALARY"
	ActionAccessServer = "ACCESS_SERVER"
)

// abacPolicies is the closed action table. Unknown actions deny by default.
var abacPolicies = map[string]func(subject *identity.Identity) bool{
	ActionViewSalary: func(s *identity.Identity) bool {
		return s.Department == "Payroll" && s.Status == identity.StatusActive
	},
	ActionAccessServer: func(s *identity.Identity) bool {
		return s.Department == "IT"
	},
}

// Engine is a stateless policy evaluator.
type Engine struct {
	resources identity.ResourceStore
	audit     *audit.Recorder
	now       func() time.Time

	hoursOpen  int
	hoursClose int
}

// Option configures Engine behavior.
type Option func(*Engine)

// WithClock overrides the time source consulted by the time-of-day rule
// (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// WithBusinessHours overrides the [open, close) hour window of the
// rule-based model.
func WithBusinessHours(open, close int) Option {
	return func(e *Engine) {
		if open >= 0 && close <= 24 && open < close {
			e.hoursOpen = open
			e.hoursClose = close
		}
	}
}

// NewEngine constructs the decision engine.
func NewEngine(resources identity.ResourceStore, recorder *audit.Recorder, opts ...Option) (*Engine, error) {
	if resources == nil {
		return nil, errors.New("access: resource store is required")
	}
	if recorder == nil {
		return nil, errors.New("access: audit recorder is required")
	}
	e := &Engine{
		resources:  resources,
		audit:      recorder,
		now:        time.Now,
		hoursOpen:  defaultHoursOpen,
		hoursClose: defaultHoursClose,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Decide evaluates one request for the subject. Every policy evaluation,
// allow or deny, appends exactly one <MODEL>_ACCESS_ATTEMPT audit event
// carrying the request payload and the decision. A malformed request returns
// ErrInvalidRequest before any policy runs and is not recorded as a decision;
// an infrastructure failure fails the evaluation but still gets a best-effort
// audit record.
func (e *Engine) Decide(ctx context.Context, subject *identity.Identity, req Request) (Decision, error) {
	if subject == nil {
		return Decision{}, fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if req == nil {
		return Decision{}, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}

	var (
		decision Decision
		err      error
	)
	switch r := req.(type) {
	case MACRequest:
		decision, err = e.decideMAC(subject, r)
	case DACRequest:
		decision, err = e.decideDAC(ctx, subject, r)
	case RBACRequest:
		decision, err = e.decideRBAC(subject, r)
	case RuBACRequest:
		decision = e.decideRuBAC()
	case ABACRequest:
		decision, err = e.decideABAC(subject, r)
	default:
		return Decision{}, fmt.Errorf("%w: unknown model %s", ErrInvalidRequest, req.Model())
	}

	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return Decision{}, err
		}
		// Infrastructure failure: the evaluation fails, the audit trail
		// still gets a best-effort record of the failure itself.
		e.record(ctx, subject, req, map[string]any{
			"payload": req.payload(),
			"error":   err.Error(),
		})
		return Decision{}, err
	}

	obs.CountDecision(string(req.Model()), decision.Allowed)
	e.record(ctx, subject, req, map[string]any{
		"payload": req.payload(),
		"allowed": decision.Allowed,
		"reason":  decision.Reason,
	})
	return decision, nil
}

func (e *Engine) record(ctx context.Context, subject *identity.Identity, req Request, details map[string]any) {
	tag := fmt.Sprintf("%s_ACCESS_ATTEMPT", req.Model())
	e.audit.Record(ctx, subject.ID, subject.Name, tag, details)
}

func (e *Engine) decideMAC(subject *identity.Identity, req MACRequest) (Decision, error) {
	if req.Sensitivity == "" {
		return Decision{}, fmt.Errorf("%w: missing sensitivity level", ErrInvalidRequest)
	}
	if !req.Sensitivity.Valid() {
		return Decision{}, fmt.Errorf("%w: unknown sensitivity level %q", ErrInvalidRequest, req.Sensitivity)
	}
	required := req.Sensitivity.Level()
	if subject.ClearanceLevel >= required {
		return Decision{Allowed: true, Reason: "Clearance Level Sufficient"}, nil
	}
	return Decision{
		Allowed: false,
		Reason: fmt.Sprintf("Clearance Level %d too low for %s (requires %d)",
			subject.ClearanceLevel, req.Sensitivity, required),
	}, nil
}

func (e *Engine) decideDAC(ctx context.Context, subject *identity.Identity, req DACRequest) (Decision, error) {
	if strings.TrimSpace(req.ResourceID) == "" {
		return Decision{}, fmt.Errorf("%w: missing resource id", ErrInvalidRequest)
	}
	res, err := e.resources.FindByID(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			// Absent resource denies; there is no implicit allow on not-found.
			return Decision{Allowed: false, Reason: "No Discretionary Access granted"}, nil
		}
		return Decision{}, err
	}
	subjectID := canonicalID(subject.ID)
	if canonicalID(res.OwnerID) == subjectID && subjectID != "" {
		return Decision{Allowed: true, Reason: "You are Owner or have Shared access"}, nil
	}
	for _, shared := range res.SharedWith {
		if canonicalID(shared) == subjectID {
			return Decision{Allowed: true, Reason: "You are Owner or have Shared access"}, nil
		}
	}
	return Decision{Allowed: false, Reason: "No Discretionary Access granted"}, nil
}

func (e *Engine) decideRBAC(subject *identity.Identity, req RBACRequest) (Decision, error) {
	if req.RequiredRole == "" {
		return Decision{}, fmt.Errorf("%w: missing required role", ErrInvalidRequest)
	}
	// Admin passes every role check.
	if subject.Role == identity.RoleAdmin {
		return Decision{Allowed: true, Reason: "Role Match"}, nil
	}
	if subject.Role == req.RequiredRole {
		return Decision{Allowed: true, Reason: "Role Match"}, nil
	}
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("User role %s != %s", subject.Role, req.RequiredRole),
	}, nil
}

func (e *Engine) decideRuBAC() Decision {
	hour := e.now().Hour()
	if hour >= e.hoursOpen && hour < e.hoursClose {
		return Decision{
			Allowed: true,
			Reason:  fmt.Sprintf("Accessing within working hours (%d-%d)", e.hoursOpen, e.hoursClose),
		}
	}
	return Decision{Allowed: false, Reason: "Access denied: Outside working hours"}
}

func (e *Engine) decideABAC(subject *identity.Identity, req ABACRequest) (Decision, error) {
	if strings.TrimSpace(req.Action) == "" {
		return Decision{}, fmt.Errorf("%w: missing action type", ErrInvalidRequest)
	}
	policy, ok := abacPolicies[req.Action]
	if !ok || !policy(subject) {
		return Decision{Allowed: false, Reason: "Attributes do not match policy"}, nil
	}
	return Decision{Allowed: true, Reason: "Attributes Match Policy"}, nil
}

func canonicalID(id string) string {
	return strings.TrimSpace(id)
}
