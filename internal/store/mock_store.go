// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	users    map[string]*User    // keyed by uid
	sessions map[string]*Session // keyed by session ID
	audit    []AuditEntry

	// FailWrites makes user mutations return this error when set.
	FailWrites error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}

	for _, u := range m.users {
		if u.Email == user.Email || (user.Username != "" && u.Username == user.Username) {
			return ErrUserExists
		}
	}

	prepareUser(user)
	u := *user
	m.users[u.UID] = &u
	return nil
}

// GetUser retrieves a user by uid.
func (m *MockStore) GetUser(ctx context.Context, uid string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	result := *u
	return &result, nil
}

// GetUserByIdentifier retrieves a user by email, then by username.
func (m *MockStore) GetUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var byName *User
	for _, u := range m.users {
		if u.Email == identifier {
			result := *u
			return &result, nil
		}
		if u.Username != "" && u.Username == identifier {
			byName = u
		}
	}
	if byName == nil {
		return nil, ErrUserNotFound
	}
	result := *byName
	return &result, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Email < users[j].Email
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// UpdateUserRole overwrites a user's role.
func (m *MockStore) UpdateUserRole(ctx context.Context, uid, role string) error {
	return m.updateUser(uid, func(u *User) { u.Role = role })
}

// UpdateUserPassword overwrites a user's password hash.
func (m *MockStore) UpdateUserPassword(ctx context.Context, uid, passwordHash string) error {
	return m.updateUser(uid, func(u *User) { u.PasswordHash = passwordHash })
}

func (m *MockStore) updateUser(uid string, apply func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}

	u, ok := m.users[uid]
	if !ok {
		return ErrUserNotFound
	}
	apply(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateSession stores a session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	m.sessions[s.ID] = &s
	return nil
}

// GetSession retrieves a non-expired session.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, ErrSessionNotFound
	}
	result := *s
	return &result, nil
}

// DeleteSession removes a session.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (m *MockStore) DeleteExpiredSessions(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
		}
	}
	return nil
}

// SessionCount returns the number of stored sessions, expired or not.
func (m *MockStore) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// AppendAuditLog records an audit entry.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := prepareAuditEntry(e); err != nil {
		return err
	}
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Until != nil && e.Timestamp.After(*f.Until) {
			continue
		}
		if f.UserEmail != nil && e.UserEmail != *f.UserEmail {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit := normalizeAuditLimit(f.Limit); len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
