// ABOUTME: Session value describing the logged-in user of a request
// ABOUTME: Provides Login/Logout, role checks and WithSession/SessionFromContext helpers

package auth

import (
	"context"
	"errors"
)

// Role is a user's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole converts a stored or submitted role string. Empty means RoleUser.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("insufficient role")
	ErrInvalidRole      = errors.New("role must be \"user\" or \"admin\"")
)

// Session holds the authentication state of one client. The zero value is logged out.
type Session struct {
	authenticated bool
	email         string
	role          Role
	displayName   string
}

// Login marks the session authenticated as the given identity.
func (s *Session) Login(email string, role Role, displayName string) {
	if displayName == "" {
		displayName = email
	}
	s.authenticated = true
	s.email = email
	s.role = role
	s.displayName = displayName
}

// Logout resets the session to its zero value. Safe to call repeatedly.
func (s *Session) Logout() {
	*s = Session{}
}

// IsAuthenticated reports whether Login has been called since the last Logout.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.authenticated
}

// Role returns the session role, or "" when logged out.
func (s *Session) Role() Role {
	if s == nil {
		return ""
	}
	return s.role
}

func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	return s.displayName
}

// IsAdmin reports whether the session is authenticated with the admin role.
func (s *Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.role == RoleAdmin
}

// Authorize checks that the session may access a view requiring the given role.
// An empty required role or RoleUser accepts any authenticated session.
func (s *Session) Authorize(required Role) error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if required == RoleAdmin && s.role != RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// sessionContextKey is the key type for storing a Session in context.Context.
type sessionContextKey struct{}

// WithSession returns a new context carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the request's session. A logged-out session is
// returned when none is attached, so callers never need a nil check.
func SessionFromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionContextKey{}).(*Session); ok && sess != nil {
		return sess
	}
	return &Session{}
}
