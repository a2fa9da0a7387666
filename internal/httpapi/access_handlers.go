package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"accesslab.dev/internal/access"
	"accesslab.dev/internal/identity"
)

type accessCheckRequest struct {
	Model        string `json:"model"`
	Sensitivity  string `json:"sensitivity,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	RequiredRole string `json:"required_role,omitempty"`
	Action       string `json:"action,omitempty"`
}

func (a *API) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req accessCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	check, err := buildRequest(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := a.engine.Decide(r.Context(), subject, check)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrInvalidRequest):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "resource store unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "access check failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func buildRequest(req accessCheckRequest) (access.Request, error) {
	switch access.Model(req.Model) {
	case access.ModelMAC:
		return access.MACRequest{Sensitivity: identity.Sensitivity(req.Sensitivity)}, nil
	case access.ModelDAC:
		return access.DACRequest{ResourceID: req.ResourceID}, nil
	case access.ModelRBAC:
		return access.RBACRequest{RequiredRole: identity.Role(req.RequiredRole)}, nil
	case access.ModelRuBAC:
		return access.RuBACRequest{}, nil
	case access.ModelABAC:
		return access.ABACRequest{Action: req.Action}, nil
	default:
		return nil, fmt.Errorf("unknown access model %q", req.Model)
	}
}

func (a *API) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := SubjectFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	resources, err := a.resources.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "resource store unavailable")
		return
	}
	if resources == nil {
		resources = []*identity.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}
