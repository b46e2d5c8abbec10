// Package migrate applies the audit-log schema: the runs and run_events
// tables. Runs never carry negotiation transcripts (that is the Non-goal),
// only the summary of what was decided.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Apply runs every embedded migration in filename order, each file in its
// own transaction, tracking applied filenames in a bookkeeping table so Apply
// is safe to call on every process start.
func Apply(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TEXT NOT NULL DEFAULT (datetime('now')))`); err != nil {
		return fmt.Errorf("migrate: bookkeeping table: %w", err)
	}
	names, err := sortedMigrationNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		var already int
		if err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE filename = ?`, name).Scan(&already); err != nil {
			return fmt.Errorf("migrate: check %s: %w", name, err)
		}
		if already > 0 {
			continue
		}
		if err := applyOne(db, name); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(db *sql.DB, name string) error {
	contents, err := fs.ReadFile(migrationFiles, "sql/"+name)
	if err != nil {
		return fmt.Errorf("migrate: read %s: %w", name, err)
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin %s: %w", name, err)
	}
	if _, err := tx.Exec(string(contents)); err != nil {
		tx.Rollback()
		return fmt.Errorf("migrate: apply %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES (?)`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("migrate: record %s: %w", name, err)
	}
	return tx.Commit()
}

func sortedMigrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrate: list sql directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
