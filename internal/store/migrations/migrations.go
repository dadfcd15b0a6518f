// Package migrations embeds the goose SQL migrations for the PostgreSQL store.
package migrations

import "embed"

// Migrations holds the *.sql files applied by goose at startup.
//
//go:embed *.sql
var Migrations embed.FS
