// Package index provides the SQLite-backed derived cache over the knowledge
// root, with optional FTS5 candidate narrowing for full-text search.
//
// The cache is disposable: it lives in a single database file, derives
// entirely from the markdown sources, and may be deleted at any time. A
// rebuild replaces every row in one transaction, so concurrent readers see
// either the old index or the new one, never a mix.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path  TEXT PRIMARY KEY,
	kind  TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	body  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS plans (
	path       TEXT PRIMARY KEY,
	plan_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	author     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	topics     TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_plans_plan_id ON plans(plan_id);
CREATE INDEX IF NOT EXISTS idx_plans_status  ON plans(status);

CREATE TABLE IF NOT EXISTS sessions (
	path    TEXT PRIMARY KEY,
	date    TEXT NOT NULL DEFAULT '',
	topics  TEXT NOT NULL DEFAULT '[]',
	plan_id TEXT NOT NULL DEFAULT '',
	status  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date);

CREATE TABLE IF NOT EXISTS learned (
	path     TEXT PRIMARY KEY,
	category TEXT NOT NULL DEFAULT '',
	keywords TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
