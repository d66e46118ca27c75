// Package manifest records what each build wrote to the output directory,
// backed by SQLite.
package manifest

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS outputs (
	path            TEXT PRIMARY KEY,
	source_checksum TEXT NOT NULL DEFAULT '',
	output_checksum TEXT NOT NULL DEFAULT '',
	resolved        INTEGER NOT NULL DEFAULT 0,
	unresolved      INTEGER NOT NULL DEFAULT 0,
	broken          INTEGER NOT NULL DEFAULT 0,
	built_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Row is one output entry.
type Row struct {
	Path           string    `json:"path"`
	SourceChecksum string    `json:"source_checksum"`
	OutputChecksum string    `json:"output_checksum"`
	Resolved       int       `json:"resolved"`
	Unresolved     int       `json:"unresolved"`
	Broken         int       `json:"broken"`
	BuiltAt        time.Time `json:"built_at"`
}

// Store is the manifest interface consumed by the build service.
type Store interface {
	Record(r Row) error
	Get(path string) (*Row, error)
	AllChecksums() (map[string]string, error)
	Delete(path string) error
	Close() error
}

// DB wraps a sql.DB with manifest operations.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("manifest: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("manifest: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("manifest: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Record inserts or replaces the row for r.Path.
func (db *DB) Record(r Row) error {
	if r.BuiltAt.IsZero() {
		r.BuiltAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO outputs (path, source_checksum, output_checksum, resolved, unresolved, broken, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			source_checksum = excluded.source_checksum,
			output_checksum = excluded.output_checksum,
			resolved        = excluded.resolved,
			unresolved      = excluded.unresolved,
			broken          = excluded.broken,
			built_at        = excluded.built_at
	`, r.Path, r.SourceChecksum, r.OutputChecksum, r.Resolved, r.Unresolved, r.Broken, r.BuiltAt)
	if err != nil {
		return fmt.Errorf("manifest: record %s: %w", r.Path, err)
	}
	return nil
}

// Get returns the row for path, or nil if none is recorded.
func (db *DB) Get(path string) (*Row, error) {
	var r Row
	err := db.conn.QueryRow(`
		SELECT path, source_checksum, output_checksum, resolved, unresolved, broken, built_at
		FROM outputs WHERE path = ?
	`, path).Scan(&r.Path, &r.SourceChecksum, &r.OutputChecksum, &r.Resolved, &r.Unresolved, &r.Broken, &r.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: get %s: %w", path, err)
	}
	return &r, nil
}

// AllChecksums maps every recorded output path to its output checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, output_checksum FROM outputs`)
	if err != nil {
		return nil, fmt.Errorf("manifest: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Delete removes the row for path.
func (db *DB) Delete(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM outputs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("manifest: delete %s: %w", path, err)
	}
	return nil
}
