package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite store.
const schemaV1 = `
-- One row per simulation run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    scenario TEXT,
    identifier TEXT NOT NULL,
    model TEXT NOT NULL,     -- 'integer', 'fractional', 'push', 'pull'
    graph TEXT NOT NULL,
    replicate INTEGER NOT NULL DEFAULT 0,
    seed INTEGER NOT NULL,

    activation_prob REAL NOT NULL DEFAULT 0,
    seed_fraction REAL NOT NULL DEFAULT 0,

    nodes INTEGER NOT NULL,
    edges INTEGER NOT NULL,
    seeds INTEGER NOT NULL,
    activated INTEGER NOT NULL,
    observed INTEGER NOT NULL,
    unobserved INTEGER NOT NULL,
    visits INTEGER NOT NULL,
    epochs INTEGER NOT NULL,
    stalled INTEGER NOT NULL DEFAULT 0,

    started_at TEXT NOT NULL,
    duration_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_identifier ON runs(identifier);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- One row per node per run; NULL marks undefined values
CREATE TABLE IF NOT EXISTS records (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    node INTEGER NOT NULL,
    activated INTEGER NOT NULL,
    threshold REAL,
    before_activation_alters REAL,
    after_activation_alters REAL,
    degree REAL NOT NULL,
    observed INTEGER,
    activation_order INTEGER,
    seed INTEGER NOT NULL DEFAULT 0,
    critical_exposure INTEGER,
    visits INTEGER NOT NULL DEFAULT 0,
    covariates TEXT,  -- JSON object
    PRIMARY KEY (run_id, node)
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema initializes the database schema. It creates all tables on a
// fresh database and validates integrity on an existing one. A database
// written by a different schema version is rejected.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (this build reads version %d)", currentVersion, SchemaVersion)
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// createSchema creates the initial database schema.
func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA
// foreign_key_check and returns an error if either reports a problem.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}

// ResetSchema drops all tables and recreates the schema.
// Only use for testing.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"records", "runs", "schema_version"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return InitSchema(ctx, db)
}
