// Package config handles configuration loading for labmap.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Empty fields receive defaults and the result is validated.
//
// # Configuration File
//
// Lookup order (see ResolvePath):
//
//  1. --config flag
//  2. Path from LABMAP_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/labmap/config.yaml (~/.config/labmap/config.yaml)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  dsn: "${LABMAP_DATABASE_DSN}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8501"
//	database:
//	  driver: "sqlite"   # sqlite, postgres
//	  path: "/var/lib/labmap/labmap.db"
//	session:
//	  duration: "12h"
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	mapping:
//	  preview_rows: 20
//	  max_upload_mb: 32
//	  result_ttl: "30m"
//	archive:
//	  enabled: true
//	  bucket: "labmap-exports"
//
// # Seed File
//
// `labmap seed` reads a TOML file with one [[users]] table per account:
//
//	[[users]]
//	email = "admin@example.com"
//	username = "admin"
//	role = "admin"
//	password = "${LABMAP_ADMIN_PASSWORD}"
package config
