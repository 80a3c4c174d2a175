// Package migrations embeds the SQL migration files.
package migrations

import "embed"

// SQLite holds the migrations applied by pkg/db/sqlite, under "sqlite/".
//
//go:embed sqlite/*.sql
var SQLite embed.FS
