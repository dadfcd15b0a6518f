// ABOUTME: SQLite methods for the user directory
// ABOUTME: Create, lookup by uid or email/username, list and unconditional role/password overwrites

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUser inserts a directory record. UID and timestamps are filled when unset.
// Returns ErrUserExists when the email or username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	prepareUser(user)

	query := `
		INSERT INTO users (uid, email, username, role, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.UID,
		user.Email,
		nullString(user.Username),
		user.Role,
		nullString(user.PasswordHash),
		user.CreatedAt.UTC().Format(timeLayout),
		user.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("created user", "uid", user.UID, "email", user.Email, "role", user.Role)
	return nil
}

func prepareUser(user *User) {
	if user.UID == "" {
		user.UID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = "user"
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
}

const sqliteUserColumns = `uid, email, username, role, password_hash, created_at, updated_at`

// GetUser retrieves a user by uid.
func (s *SQLiteStore) GetUser(ctx context.Context, uid string) (*User, error) {
	query := `SELECT ` + sqliteUserColumns + ` FROM users WHERE uid = ?`

	user, err := scanSQLiteUser(s.db.QueryRowContext(ctx, query, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

// GetUserByIdentifier retrieves a user whose email or username equals identifier.
// Email wins when both match different records.
func (s *SQLiteStore) GetUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	query := `
		SELECT ` + sqliteUserColumns + `
		FROM users
		WHERE email = ? OR username = ?
		ORDER BY CASE WHEN email = ? THEN 0 ELSE 1 END
		LIMIT 1
	`

	user, err := scanSQLiteUser(s.db.QueryRowContext(ctx, query, identifier, identifier, identifier))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by identifier: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by creation time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + sqliteUserColumns + ` FROM users ORDER BY created_at ASC, email ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	return users, nil
}

// UpdateUserRole overwrites a user's role.
func (s *SQLiteStore) UpdateUserRole(ctx context.Context, uid, role string) error {
	if err := s.updateUser(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE uid = ?`, role, uid); err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	s.logger.Info("updated user role", "uid", uid, "role", role)
	return nil
}

// UpdateUserPassword overwrites a user's password hash.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, uid, passwordHash string) error {
	if err := s.updateUser(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE uid = ?`, passwordHash, uid); err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	s.logger.Info("updated user password", "uid", uid)
	return nil
}

func (s *SQLiteStore) updateUser(ctx context.Context, query, value, uid string) error {
	now := time.Now().UTC().Format(timeLayout)

	result, err := s.db.ExecContext(ctx, query, value, now, uid)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanSQLiteUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var user User
	var username, passwordHash sql.NullString
	var createdAtStr, updatedAtStr string

	if err := scanner.Scan(
		&user.UID,
		&user.Email,
		&username,
		&user.Role,
		&passwordHash,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	user.Username = username.String
	user.PasswordHash = passwordHash.String

	var err error
	user.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = time.Parse(timeLayout, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, nil
}
