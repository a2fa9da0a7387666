package httpapi

import (
	"errors"
	"net/http"
	"time"

	"accesslab.dev/internal/authn"
	"accesslab.dev/internal/identity"
	"accesslab.dev/internal/obs"
)

// Machine-readable tags for authentication outcomes.
const (
	tagInvalidCredentials = "INVALID_CREDENTIALS"
	tagAccountLocked      = "ACCOUNT_LOCKED"
	tagMFARequired        = "MFA_REQUIRED"
	tagInvalidMFACode     = "INVALID_MFA_CODE"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.authn.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authn.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrAlreadyExists):
			writeError(w, r, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "identity store unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type loginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	Identity  *identity.Identity `json:"identity"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := a.authn.Login(r.Context(), req.Email, req.Password, req.MFACode)
	if err != nil {
		var locked *authn.LockedError
		switch {
		case errors.As(err, &locked):
			obs.CountLogin("locked")
			writeTaggedError(w, r, http.StatusForbidden, tagAccountLocked, locked.Error())
		case errors.Is(err, authn.ErrMFARequired):
			obs.CountLogin("mfa_required")
			writeTaggedError(w, r, http.StatusUnauthorized, tagMFARequired, "mfa code required")
		case errors.Is(err, authn.ErrInvalidMFACode):
			obs.CountLogin("invalid_mfa")
			writeTaggedError(w, r, http.StatusUnauthorized, tagInvalidMFACode, "invalid mfa code")
		case errors.Is(err, authn.ErrInvalidCredentials):
			obs.CountLogin("invalid_credentials")
			writeTaggedError(w, r, http.StatusUnauthorized, tagInvalidCredentials, "invalid credentials")
		case errors.Is(err, identity.ErrUnavailable):
			obs.CountLogin("error")
			writeError(w, r, http.StatusServiceUnavailable, "identity store unavailable")
		default:
			obs.CountLogin("error")
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	token, expiresAt, err := a.sessions.Mint(id)
	if err != nil {
		obs.CountLogin("error")
		writeError(w, r, http.StatusInternalServerError, "session creation failed")
		return
	}
	obs.CountLogin("success")
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, Identity: id})
}

type profileRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.authn.UpdateProfile(r.Context(), subject.ID, req.Name, req.Password); err != nil {
		switch {
		case errors.Is(err, authn.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "identity not found")
		case errors.Is(err, identity.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "identity store unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "profile update failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (a *API) handleMFASecret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	secret, account, err := a.authn.GenerateMFASecret(r.Context(), subject.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "secret generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":  secret,
		"account": account,
	})
}

type mfaEnableRequest struct {
	Secret    string `json:"secret"`
	ProofCode string `json:"proof_code"`
}

func (a *API) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req mfaEnableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.authn.EnableMFA(r.Context(), subject.ID, req.Secret, req.ProofCode); err != nil {
		switch {
		case errors.Is(err, authn.ErrInvalidMFACode):
			writeTaggedError(w, r, http.StatusBadRequest, tagInvalidMFACode, "proof code does not match the secret")
		case errors.Is(err, authn.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "identity store unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "mfa enrollment failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "enabled"})
}
