// Package store provides the user directory, login sessions and audit log for labmap.
//
// # Backends
//
// Three implementations satisfy the Store interface:
//
//   - SQLiteStore: the default, a single file created on first use (modernc.org/sqlite)
//   - PostgresStore: PostgreSQL through pgx, schema managed by embedded goose migrations
//   - MockStore: in-memory, for tests
//
// The store is opened once at startup and shared by every component that needs it.
//
// # Data Models
//
//   - User: directory record with uid, email, optional username, role and bcrypt hash
//   - Session: server-side login session referenced by a browser cookie
//   - AuditEntry: who exported a mapping or changed a user, and when
//
// Role and password updates are unconditional overwrites. Two admins editing the
// same user race and the last write wins.
package store
