// Package migrations embeds the SQL schema so the binary can migrate a
// database without shipping files alongside it.
package migrations

import "embed"

// Postgres holds the numbered migration files applied by db.Migrator.
//
//go:embed *.sql
var Postgres embed.FS

// SQLiteSchema is applied idempotently when a SQLite store is opened.
//
//go:embed sqlite/schema.sql
var SQLiteSchema string
