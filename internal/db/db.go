// Package db opens the audit-log database: a sqlite file recording which
// runs happened and what they decided, never the negotiation transcripts
// themselves (persistence of negotiation history is an explicit
// Non-goal). Adapted from the teacher's workspace-database opener.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (creating if absent) the sqlite database at path.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := EnsureParentDir(path); err != nil {
			return nil, err
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: enable WAL: %w", err)
	}
	return conn, nil
}

// EnsureParentDir creates the directory containing path if it does not exist.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("db: create directory %s: %w", dir, err)
	}
	return nil
}
