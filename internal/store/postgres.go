package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/georgeberry/thresholds/internal/record"
)

// pgSchema mirrors the SQLite schema with PostgreSQL types.
const pgSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    scenario TEXT,
    identifier TEXT NOT NULL,
    model TEXT NOT NULL,
    graph TEXT NOT NULL,
    replicate INTEGER NOT NULL DEFAULT 0,
    seed BIGINT NOT NULL,
    activation_prob DOUBLE PRECISION NOT NULL DEFAULT 0,
    seed_fraction DOUBLE PRECISION NOT NULL DEFAULT 0,
    nodes INTEGER NOT NULL,
    edges INTEGER NOT NULL,
    seeds INTEGER NOT NULL,
    activated INTEGER NOT NULL,
    observed INTEGER NOT NULL,
    unobserved INTEGER NOT NULL,
    visits BIGINT NOT NULL,
    epochs INTEGER NOT NULL,
    stalled BOOLEAN NOT NULL DEFAULT FALSE,
    started_at TIMESTAMPTZ NOT NULL,
    duration_ns BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_identifier ON runs(identifier);

CREATE TABLE IF NOT EXISTS records (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    node BIGINT NOT NULL,
    activated BOOLEAN NOT NULL,
    threshold DOUBLE PRECISION,
    before_activation_alters DOUBLE PRECISION,
    after_activation_alters DOUBLE PRECISION,
    degree DOUBLE PRECISION NOT NULL,
    observed SMALLINT,
    activation_order INTEGER,
    seed BOOLEAN NOT NULL DEFAULT FALSE,
    critical_exposure INTEGER,
    visits INTEGER NOT NULL DEFAULT 0,
    covariates JSONB,
    PRIMARY KEY (run_id, node)
);
`

// recordColumns is the COPY column order for the records table.
var recordColumns = []string{
	"run_id", "node", "activated", "threshold",
	"before_activation_alters", "after_activation_alters",
	"degree", "observed", "activation_order", "seed",
	"critical_exposure", "visits", "covariates",
}

// PostgresStore writes runs to PostgreSQL, bulk loading records with COPY.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the tables if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 8
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// WriteRun inserts the run row and copies its records in one transaction,
// replacing a stored run with the same ID.
func (s *PostgresStore) WriteRun(ctx context.Context, run RunSummary, records []record.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM runs WHERE id = $1`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run %s: %w", run.ID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (
			id, scenario, identifier, model, graph, replicate, seed,
			activation_prob, seed_fraction,
			nodes, edges, seeds, activated, observed, unobserved, visits, epochs, stalled,
			started_at, duration_ns
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		run.ID, nullString(run.Scenario), run.Identifier, run.Model, run.Graph, run.Replicate, int64(run.Seed),
		run.ActivationProb, run.SeedFraction,
		run.Nodes, run.Edges, run.Seeds, run.Activated, run.Observed, run.Unobserved, run.Visits, run.Epochs, run.Stalled,
		run.StartedAt, int64(run.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	rows, err := recordRows(run.ID, records)
	if err != nil {
		return err
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"records"}, recordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy records for run %s: %w", run.ID, err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d records for run %s", n, len(rows), run.ID)
	}

	return tx.Commit(ctx)
}

// recordRows converts records to COPY rows in recordColumns order.
func recordRows(runID string, records []record.Record) ([][]any, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var covariates []byte
		if len(r.Covariates) > 0 {
			data, err := json.Marshal(r.Covariates)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal covariates for node %d: %w", r.Node, err)
			}
			covariates = data
		}
		rows = append(rows, []any{
			runID, r.Node, r.Activated, r.Threshold,
			r.Before, r.After,
			r.Degree, r.Observed, r.ActivationOrder, r.Seed,
			r.CriticalExposure, r.Visits, covariates,
		})
	}
	return rows, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
