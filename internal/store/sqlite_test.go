// ABOUTME: Tests for the SQLite store's user and session methods
// ABOUTME: Each test runs against a fresh database file in a temp dir

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func createTestUser(t *testing.T, s Store, email, username, role string) *User {
	t.Helper()
	u := &User{
		Email:        email,
		Username:     username,
		Role:         role,
		PasswordHash: "$2a$10$hash-" + email,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestSQLiteStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "labmap.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}

func TestSQLiteStore_CreateAndGetUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice@example.com", "alice", "admin")
	assert.NotEmpty(t, u.UID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "admin", got.Role)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_CreateUserDefaultsRole(t *testing.T) {
	s := setupTestStore(t)

	u := createTestUser(t, s, "bob@example.com", "", "")
	got, err := s.GetUser(context.Background(), u.UID)
	require.NoError(t, err)
	assert.Equal(t, "user", got.Role)
	assert.Equal(t, "", got.Username)
}

func TestSQLiteStore_CreateUserDuplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "alice@example.com", "alice", "user")

	err := s.CreateUser(ctx, &User{Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)

	err = s.CreateUser(ctx, &User{Email: "other@example.com", Username: "alice"})
	assert.ErrorIs(t, err, ErrUserExists)

	// several users without a username are fine
	createTestUser(t, s, "a@example.com", "", "user")
	createTestUser(t, s, "b@example.com", "", "user")
}

func TestSQLiteStore_GetUserNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLiteStore_GetUserByIdentifier(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, s, "alice@example.com", "alice", "user")

	got, err := s.GetUserByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.UID, got.UID)

	got, err = s.GetUserByIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.UID, got.UID)

	_, err = s.GetUserByIdentifier(ctx, "ALICE")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLiteStore_GetUserByIdentifierPrefersEmail(t *testing.T) {
	s := setupTestStore(t)

	// bob's username is alice's email
	createTestUser(t, s, "bob@example.com", "alice@example.com", "user")
	alice := createTestUser(t, s, "alice@example.com", "alice", "user")

	got, err := s.GetUserByIdentifier(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.UID, got.UID)
}

func TestSQLiteStore_ListUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	createTestUser(t, s, "a@example.com", "", "user")
	createTestUser(t, s, "b@example.com", "", "admin")

	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@example.com", users[0].Email)
}

func TestSQLiteStore_UpdateUserRole(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice@example.com", "", "user")

	require.NoError(t, s.UpdateUserRole(ctx, u.UID, "admin"))

	got, err := s.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	err = s.UpdateUserRole(ctx, "missing", "admin")
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestSQLiteStore_UpdateUserPassword(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice@example.com", "", "user")

	require.NoError(t, s.UpdateUserPassword(ctx, u.UID, "new-hash"))

	got, err := s.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	err = s.UpdateUserPassword(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLiteStore_Sessions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "alice@example.com", "", "user")
	now := time.Now().UTC()

	live := &Session{ID: "live", UserID: u.UID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := &Session{ID: "expired", UserID: u.UID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, s.CreateSession(ctx, live))
	require.NoError(t, s.CreateSession(ctx, expired))

	got, err := s.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, u.UID, got.UserID)
	assert.True(t, live.ExpiresAt.Equal(got.ExpiresAt))

	_, err = s.GetSession(ctx, "expired")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.DeleteExpiredSessions(ctx))
	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteSession(ctx, "live"))
	_, err = s.GetSession(ctx, "live")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// deleting twice is fine
	require.NoError(t, s.DeleteSession(ctx, "live"))
}

func TestSQLiteStore_SessionRequiresUser(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()

	err := s.CreateSession(context.Background(), &Session{ID: "x", UserID: "ghost", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	assert.Error(t, err)
}
