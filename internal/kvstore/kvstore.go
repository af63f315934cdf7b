// Package kvstore provides scoped, string-keyed storage of JSON-encoded
// values backed by SQLite. It is the client-side analog of the browser's
// scoped key-value storage: small, durable, and indifferent to value shape.
package kvstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/skald/internal/apperr"
)

// Well-known scopes.
const (
	ScopeAuth  = "auth"
	ScopePrefs = "prefs"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	scope      TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL DEFAULT 'null',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (scope, key)
);
`

// Store defines the scoped key-value operations. Consumers should depend on
// this interface rather than the concrete *DB type to facilitate testing.
type Store interface {
	Get(scope, key string, out any) error
	Set(scope, key string, value any) error
	Delete(scope, key string) error
	Close() error
}

var _ Store = (*DB)(nil)

// DB wraps a sql.DB with key-value operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("kvstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get decodes the value stored under (scope, key) into out.
// Returns apperr.ErrNotFound when no entry exists.
func (db *DB) Get(scope, key string, out any) error {
	var raw string
	err := db.conn.QueryRow(
		`SELECT value FROM kv WHERE scope = ? AND key = ?`, scope, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("kvstore: get %s/%s: %w", scope, key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("kvstore: decode %s/%s: %w", scope, key, err)
	}
	return nil
}

// Set stores value under (scope, key), JSON-encoded, replacing any
// previous entry.
func (db *DB) Set(scope, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s/%s: %w", scope, key, err)
	}
	_, err = db.conn.Exec(
		`INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		scope, key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("kvstore: set %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes the entry under (scope, key). Deleting a missing entry
// is not an error.
func (db *DB) Delete(scope, key string) error {
	if _, err := db.conn.Exec(`DELETE FROM kv WHERE scope = ? AND key = ?`, scope, key); err != nil {
		return fmt.Errorf("kvstore: delete %s/%s: %w", scope, key, err)
	}
	return nil
}
