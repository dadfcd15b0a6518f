// ABOUTME: PostgreSQL implementation of the Store interface using pgx via database/sql
// ABOUTME: Schema is managed by embedded goose migrations applied on open

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/2389/labmap/internal/store/migrations"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// NewPostgresStore connects to dsn, applies migrations and returns the store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := newPostgresStore(db)
	if err := s.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("PostgreSQL store initialized")
	return s, nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// RunMigrations applies the embedded goose migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return gooseUpContext(ctx, s.db, ".")
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const pgUserColumns = `uid, email, username, role, password_hash, created_at, updated_at`

// CreateUser inserts a directory record. UID and timestamps are filled when unset.
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	prepareUser(user)

	query := `INSERT INTO users (` + pgUserColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		user.UID,
		user.Email,
		nullString(user.Username),
		user.Role,
		nullString(user.PasswordHash),
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
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

// GetUser retrieves a user by uid.
func (s *PostgresStore) GetUser(ctx context.Context, uid string) (*User, error) {
	query := `SELECT ` + pgUserColumns + ` FROM users WHERE uid = $1`

	user, err := scanPostgresUser(s.db.QueryRowContext(ctx, query, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

// GetUserByIdentifier retrieves a user whose email or username equals identifier.
func (s *PostgresStore) GetUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	query := `SELECT ` + pgUserColumns + ` FROM users WHERE email = $1 OR username = $1 ORDER BY (email = $1) DESC LIMIT 1`

	user, err := scanPostgresUser(s.db.QueryRowContext(ctx, query, identifier))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by identifier: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by creation time.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + pgUserColumns + ` FROM users ORDER BY created_at ASC, email ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		user, err := scanPostgresUser(rows)
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
func (s *PostgresStore) UpdateUserRole(ctx context.Context, uid, role string) error {
	if err := s.updateUser(ctx, `UPDATE users SET role = $1, updated_at = $2 WHERE uid = $3`, role, uid); err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	s.logger.Info("updated user role", "uid", uid, "role", role)
	return nil
}

// UpdateUserPassword overwrites a user's password hash.
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, uid, passwordHash string) error {
	if err := s.updateUser(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE uid = $3`, passwordHash, uid); err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	s.logger.Info("updated user password", "uid", uid)
	return nil
}

func (s *PostgresStore) updateUser(ctx context.Context, query, value, uid string) error {
	result, err := s.db.ExecContext(ctx, query, value, time.Now().UTC(), uid)
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

func scanPostgresUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var user User
	var username, passwordHash sql.NullString

	if err := scanner.Scan(
		&user.UID,
		&user.Email,
		&username,
		&user.Role,
		&passwordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.Username = username.String
	user.PasswordHash = passwordHash.String
	return &user, nil
}

// CreateSession creates a new session.
func (s *PostgresStore) CreateSession(ctx context.Context, session *Session) error {
	query := `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.CreatedAt.UTC(),
		session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a non-expired session.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1 AND expires_at > $2`

	var session Session
	err := s.db.QueryRowContext(ctx, query, id, time.Now().UTC()).Scan(
		&session.ID,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &session, nil
}

// DeleteSession deletes a session.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return nil
}

// AppendAuditLog appends a new entry to the audit log.
func (s *PostgresStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	detailJSON, err := prepareAuditEntry(e)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_log (audit_id, user_email, action, target_id, ts, detail_json) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.db.ExecContext(ctx, query,
		e.ID,
		e.UserEmail,
		string(e.Action),
		e.TargetID,
		e.Timestamp.UTC(),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

const pgAuditLogQuery = `
	SELECT audit_id, user_email, action, target_id, ts, detail_json
	FROM audit_log
	WHERE ($1::timestamptz IS NULL OR ts >= $1)
	  AND ($2::timestamptz IS NULL OR ts <= $2)
	  AND ($3::text IS NULL OR user_email = $3)
	  AND ($4::text IS NULL OR action = $4)
	ORDER BY ts DESC
	LIMIT $5
`

// ListAuditLog returns audit entries matching the filter, newest first.
func (s *PostgresStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var action *string
	if f.Action != nil {
		v := string(*f.Action)
		action = &v
	}

	rows, err := s.db.QueryContext(ctx, pgAuditLogQuery,
		f.Since,
		f.Until,
		f.UserEmail,
		action,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var actionStr string
		var detailJSON *string

		if err := rows.Scan(&e.ID, &e.UserEmail, &actionStr, &e.TargetID, &e.Timestamp, &detailJSON); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = AuditAction(actionStr)
		if err := decodeAuditDetail(&e, detailJSON); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit log: %w", err)
	}
	return entries, nil
}
