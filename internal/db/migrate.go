package db

import (
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
)

// migration is one versioned schema step. Statements run inside a single
// transaction together with the schema_migrations bookkeeping row.
type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "change log and sync metadata",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sync_changes (
				id TEXT PRIMARY KEY,
				table_name TEXT NOT NULL,
				record_id TEXT NOT NULL,
				action TEXT NOT NULL CHECK(action IN ('create','update','delete')),
				payload TEXT NOT NULL,
				local_updated_at INTEGER NOT NULL,
				synced INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sync_changes_pending
				ON sync_changes(synced, local_updated_at)`,
			`CREATE INDEX IF NOT EXISTS idx_sync_changes_record
				ON sync_changes(table_name, record_id)`,
			`CREATE TABLE IF NOT EXISTS sync_meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		},
	},
	{
		version:     2,
		description: "synchronized entity tables",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS members (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS income_records (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS expense_records (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS cash_accounts (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS dues_records (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		},
	},
}

// Migrate applies all pending schema migrations.
func Migrate(db *DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL,
		description TEXT NOT NULL
	)`); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "failed to create schema_migrations", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "failed to read schema version", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return apperrors.Wrap(apperrors.ErrMigration,
				fmt.Sprintf("migration %d (%s) failed", m.version, m.description), err)
		}
	}
	return nil
}

func applyMigration(db *DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
		m.version, time.Now().Unix(), m.description,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the current schema version.
func SchemaVersion(db *DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}
