// Package server runs labmap as a long-lived HTTP process.
//
// New opens the user directory (SQLite or PostgreSQL), the optional S3 export
// archiver and the in-memory result cache, and mounts the web UI on a single
// http.Server. Run blocks until its context is canceled, purging expired
// sessions in the background, then shuts down with a five second grace period.
package server
