// ABOUTME: User directory administration: list users, change roles, reset passwords
// ABOUTME: Wraps store failures in DirectoryWriteError and records every mutation in the audit log

// Package admin manages labmap user accounts. Callers enforce the admin role.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/labmap/internal/auth"
	"github.com/2389/labmap/internal/store"
)

// ErrInvalidRole is returned for roles other than "user" and "admin".
var ErrInvalidRole = auth.ErrInvalidRole

// ErrEmptyPassword is returned when a password reset or creation has no password.
var ErrEmptyPassword = auth.ErrEmptyPassword

// ErrInvalidEmail is returned when creating a user without a plausible email.
var ErrInvalidEmail = errors.New("email is required")

// UserStore is the part of the store the admin service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *store.User) error
	ListUsers(ctx context.Context) ([]*store.User, error)
	UpdateUserRole(ctx context.Context, uid, role string) error
	UpdateUserPassword(ctx context.Context, uid, passwordHash string) error
	AppendAuditLog(ctx context.Context, e *store.AuditEntry) error
}

// DirectoryWriteError reports a directory mutation the store rejected.
type DirectoryWriteError struct {
	Op  string
	UID string
	Err error
}

func (e *DirectoryWriteError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.UID, e.Err)
}

func (e *DirectoryWriteError) Unwrap() error {
	return e.Err
}

// Service performs admin operations on the user directory.
type Service struct {
	store  UserStore
	hash   func(string) (string, error)
	logger *slog.Logger
}

// NewService creates a Service backed by s.
func NewService(s UserStore) *Service {
	return &Service{
		store:  s,
		hash:   auth.HashPassword,
		logger: slog.Default().With("component", "admin"),
	}
}

// ListUsers returns every directory record. Callers must not rely on the order.
func (s *Service) ListUsers(ctx context.Context) ([]*store.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// SetRole overwrites the role of uid. The write is unconditional.
func (s *Service) SetRole(ctx context.Context, actorEmail, uid, role string) error {
	r := auth.Role(role)
	if !r.Valid() {
		return ErrInvalidRole
	}

	if err := s.store.UpdateUserRole(ctx, uid, string(r)); err != nil {
		return &DirectoryWriteError{Op: "set_role", UID: uid, Err: err}
	}

	s.audit(ctx, &store.AuditEntry{
		UserEmail: actorEmail,
		Action:    store.AuditSetRole,
		TargetID:  uid,
		Detail:    map[string]any{"role": string(r)},
	})
	return nil
}

// ResetPassword hashes plain with a fresh salt and overwrites the stored hash of uid.
func (s *Service) ResetPassword(ctx context.Context, actorEmail, uid, plain string) error {
	if plain == "" {
		return ErrEmptyPassword
	}

	hash, err := s.hash(plain)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.store.UpdateUserPassword(ctx, uid, hash); err != nil {
		return &DirectoryWriteError{Op: "reset_password", UID: uid, Err: err}
	}

	s.audit(ctx, &store.AuditEntry{
		UserEmail: actorEmail,
		Action:    store.AuditResetPassword,
		TargetID:  uid,
	})
	return nil
}

// CreateUser adds a directory record with a hashed password.
func (s *Service) CreateUser(ctx context.Context, actorEmail, email, username, role, plain string) (*store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	r, err := auth.ParseRole(role)
	if err != nil {
		return nil, ErrInvalidRole
	}
	if plain == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := s.hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		Email:        email,
		Username:     strings.TrimSpace(username),
		Role:         string(r),
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, &DirectoryWriteError{Op: "create_user", UID: email, Err: err}
	}

	s.audit(ctx, &store.AuditEntry{
		UserEmail: actorEmail,
		Action:    store.AuditCreateUser,
		TargetID:  user.UID,
		Detail:    map[string]any{"email": user.Email, "role": user.Role},
	})
	return user, nil
}

// audit records e. The mutation already happened, so failures are only logged.
func (s *Service) audit(ctx context.Context, e *store.AuditEntry) {
	if err := s.store.AppendAuditLog(ctx, e); err != nil {
		s.logger.Warn("failed to append audit log", "action", e.Action, "target", e.TargetID, "error", err)
	}
}
