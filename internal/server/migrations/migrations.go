// Package migrations embeds the goose SQL migrations for both supported
// database engines.
package migrations

import "embed"

// Postgres holds the migrations applied through the pgx driver.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the migrations applied through the modernc sqlite driver.
// Timestamps are stored as INTEGER unix microseconds so range predicates
// compare numerically.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
