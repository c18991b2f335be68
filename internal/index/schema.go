// Package index provides the SQLite-backed note store, link store, and
// full-text search index. FTS5 is used when built with the sqlite_fts5 tag;
// otherwise a pure-Go ranked scan over the notes table stands in.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT     NOT NULL CHECK (length(title) > 0),
	content    TEXT     NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	is_deleted INTEGER  NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_live_title ON notes(title) WHERE is_deleted = 0;
CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at);

CREATE TABLE IF NOT EXISTS links (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	source_note_id INTEGER  NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	target_note_id INTEGER  NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	created_at     DATETIME NOT NULL,
	CHECK (source_note_id <> target_note_id),
	UNIQUE (source_note_id, target_note_id)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_note_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_note_id);
`

// DB wraps a sql.DB with note, link, and search operations.
// The pool is capped at one connection, so callers inside withTx must use tx.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const connParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Open opens (or creates) the SQLite database and applies the schema.
// dsn may be a plain path or a file: URI with its own query parameters.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", withParams(dsn, connParams))
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
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
	return &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}, nil
}

func withParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}
