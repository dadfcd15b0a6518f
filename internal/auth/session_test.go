// ABOUTME: Unit tests for the Session value and context helpers
// ABOUTME: Covers zero value, login/logout, Authorize ordering and role parsing

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ZeroValueIsLoggedOut(t *testing.T) {
	var s Session

	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, Role(""), s.Role())
	assert.Equal(t, "", s.Email())
	assert.Equal(t, "", s.DisplayName())
	assert.False(t, s.IsAdmin())
}

func TestSession_LoginLogout(t *testing.T) {
	var s Session
	s.Login("alice@example.com", RoleAdmin, "alice")

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, RoleAdmin, s.Role())
	assert.Equal(t, "alice@example.com", s.Email())
	assert.Equal(t, "alice", s.DisplayName())
	assert.True(t, s.IsAdmin())

	s.Logout()
	assert.Equal(t, Session{}, s)

	// idempotent
	s.Logout()
	assert.Equal(t, Session{}, s)
}

func TestSession_LoginDefaultsDisplayName(t *testing.T) {
	var s Session
	s.Login("bob@example.com", RoleUser, "")
	assert.Equal(t, "bob@example.com", s.DisplayName())
}

func TestSession_NilReceiver(t *testing.T) {
	var s *Session

	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, Role(""), s.Role())
	assert.True(t, errors.Is(s.Authorize(RoleUser), ErrNotAuthenticated))
}

func TestSession_Authorize(t *testing.T) {
	loggedIn := func(role Role) *Session {
		s := &Session{}
		s.Login("x@example.com", role, "x")
		return s
	}

	tests := []struct {
		name     string
		session  *Session
		required Role
		wantErr  error
	}{
		{"anonymous any", &Session{}, "", ErrNotAuthenticated},
		{"anonymous user view", &Session{}, RoleUser, ErrNotAuthenticated},
		{"anonymous admin view checks auth first", &Session{}, RoleAdmin, ErrNotAuthenticated},
		{"user on user view", loggedIn(RoleUser), RoleUser, nil},
		{"user on open view", loggedIn(RoleUser), "", nil},
		{"user on admin view", loggedIn(RoleUser), RoleAdmin, ErrForbidden},
		{"admin on admin view", loggedIn(RoleAdmin), RoleAdmin, nil},
		{"admin on user view", loggedIn(RoleAdmin), RoleUser, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Authorize(tt.required)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSessionContext(t *testing.T) {
	sess := &Session{}
	sess.Login("alice@example.com", RoleUser, "alice")

	ctx := WithSession(context.Background(), sess)
	assert.Same(t, sess, SessionFromContext(ctx))

	missing := SessionFromContext(context.Background())
	require.NotNil(t, missing)
	assert.False(t, missing.IsAuthenticated())

	nilSess := SessionFromContext(WithSession(context.Background(), nil))
	require.NotNil(t, nilSess)
	assert.False(t, nilSess.IsAuthenticated())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	r, err = ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("Admin")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
