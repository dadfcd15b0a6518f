// ABOUTME: Password verification against the user directory with bcrypt
// ABOUTME: Fails closed and keeps timing uniform for unknown identifiers

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/labmap/internal/store"
)

// ErrAuthenticationFailed is the single error shown to users for any failed login.
var ErrAuthenticationFailed = errors.New("incorrect credentials")

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// dummyHash is compared against when no usable hash exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserLookup finds a user by email or username.
type UserLookup interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (*store.User, error)
}

// Result is the outcome of Verify. The zero value means failure.
type Result struct {
	OK          bool
	UID         string
	Email       string
	Role        Role
	DisplayName string
}

// Verifier checks credentials against a UserLookup.
type Verifier struct {
	users  UserLookup
	logger *slog.Logger
}

// NewVerifier creates a Verifier. A nil logger uses slog.Default.
func NewVerifier(users UserLookup, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		users:  users,
		logger: logger.With("component", "auth"),
	}
}

// Verify returns a successful Result only when the identifier names a user whose
// stored bcrypt hash matches secret. Errors are logged, never returned.
func (v *Verifier) Verify(ctx context.Context, identifier, secret string) Result {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(secret))
		return Result{}
	}

	user, err := v.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			v.logger.Error("looking up user", "error", err)
		}
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(secret))
		return Result{}
	}

	if user.PasswordHash == "" {
		v.logger.Warn("user has no password hash", "uid", user.UID)
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(secret))
		return Result{}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			v.logger.Error("comparing password hash", "uid", user.UID, "error", err)
		}
		return Result{}
	}

	role, err := ParseRole(user.Role)
	if err != nil {
		v.logger.Error("user has unknown role", "uid", user.UID, "role", user.Role)
		return Result{}
	}

	name := user.Username
	if name == "" {
		name = identifier
	}

	return Result{
		OK:          true,
		UID:         user.UID,
		Email:       user.Email,
		Role:        role,
		DisplayName: name,
	}
}

// HashPassword returns a bcrypt hash of plain with a fresh salt.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
