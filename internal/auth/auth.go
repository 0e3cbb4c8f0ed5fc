// Package auth verifies the bearer tokens that identify callers.
//
// Tokens are HS256 JWTs whose subject is the user id and whose role claim is
// either admin or student.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperrors"
)

// Role is the caller's role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Principal is the authenticated caller.
type Principal struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// claims is the token payload.
type claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Signer issues tokens. Only the dev token CLI and tests use it.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner returns a Signer for secret.
func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret), now: time.Now}
}

// Sign returns a token for subject with role, valid for ttl.
func (s *Signer) Sign(subject string, role Role, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	key []byte
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{key: []byte(secret)}
}

// Verify parses token and returns its principal. Every failure is reported
// as apperrors.ErrUnauthenticated with the jwt error as cause.
func (v *Verifier) Verify(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, apperrors.ErrUnauthenticated
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, apperrors.Wrap(apperrors.CodeUnauthenticated, apperrors.ErrUnauthenticated.Message, err)
	}
	if parsed.Subject == "" || !parsed.Role.Valid() {
		return Principal{}, apperrors.Wrap(apperrors.CodeUnauthenticated, apperrors.ErrUnauthenticated.Message,
			errors.New("token is missing subject or role"))
	}
	return Principal{ID: parsed.Subject, Role: parsed.Role}, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
