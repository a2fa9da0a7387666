package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"accesslab.dev/internal/identity"
)

const sessionIssuer = "accesslab"

// ErrInvalidSession indicates the session token failed validation.
var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims carries the resolved identity attributes the decision engine
// needs, so authenticated requests never re-read the identity store.
type SessionClaims struct {
	Name           string `json:"name"`
	Role           string `json:"role"`
	ClearanceLevel int    `json:"clearance_level"`
	Department     string `json:"department"`
	Status         string `json:"status"`
	jwt.RegisteredClaims
}

// Sessions mints and validates HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions constructs the session manager.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session secret is not configured")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be greater than zero")
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Mint signs a session token for the resolved identity.
func (s *Sessions) Mint(id *identity.Identity) (token string, expiresAt time.Time, err error) {
	now := s.now().UTC()
	expiresAt = now.Add(s.ttl)
	claims := SessionClaims{
		Name:           id.Name,
		Role:           string(id.Role),
		ClearanceLevel: id.ClearanceLevel,
		Department:     id.Department,
		Status:         id.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies the token signature and required claims, returning the
// identity resolved at login time.
func (s *Sessions) Parse(token string) (*identity.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSession
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidSession
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if claims.Issuer != sessionIssuer || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidSession
	}
	return &identity.Identity{
		ID:             claims.Subject,
		Name:           claims.Name,
		Role:           identity.Role(claims.Role),
		ClearanceLevel: claims.ClearanceLevel,
		Department:     claims.Department,
		Status:         claims.Status,
	}, nil
}
