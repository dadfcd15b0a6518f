// ABOUTME: Store interface and data types for labmap persistence
// ABOUTME: Defines User, Session and AuditEntry plus the sentinel errors shared by all backends

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user doesn't exist.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound is returned when a session doesn't exist or is expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrUserExists is returned when an email or username is already taken.
var ErrUserExists = errors.New("user already exists")

// User is a directory record.
type User struct {
	UID          string
	Email        string
	Username     string // optional, may be used as a login identifier
	Role         string // "user" or "admin"
	PasswordHash string // bcrypt hash, empty disables password login
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a server-side login session referenced by a browser cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the user directory, session table and audit log.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, uid string) (*User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUserRole(ctx context.Context, uid, role string) error
	UpdateUserPassword(ctx context.Context, uid, passwordHash string) error

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Audit log
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)

	Close() error
}
