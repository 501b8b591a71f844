package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/georgeberry/thresholds/internal/record"
)

// SQLiteStore keeps runs and records in a SQLite database.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := EnsureDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// WriteRun inserts the run and its records in one transaction, replacing
// a stored run with the same ID.
func (s *SQLiteStore) WriteRun(ctx context.Context, run RunSummary, records []record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Records go with the run through ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run %s: %w", run.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, scenario, identifier, model, graph, replicate, seed,
			activation_prob, seed_fraction,
			nodes, edges, seeds, activated, observed, unobserved, visits, epochs, stalled,
			started_at, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, nullString(run.Scenario), run.Identifier, run.Model, run.Graph, run.Replicate, int64(run.Seed),
		run.ActivationProb, run.SeedFraction,
		run.Nodes, run.Edges, run.Seeds, run.Activated, run.Observed, run.Unobserved, run.Visits, run.Epochs, run.Stalled,
		run.StartedAt.UTC().Format(time.RFC3339Nano), int64(run.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (
			run_id, node, activated, threshold, before_activation_alters, after_activation_alters,
			degree, observed, activation_order, seed, critical_exposure, visits, covariates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		covariates, err := marshalCovariates(r.Covariates)
		if err != nil {
			return fmt.Errorf("failed to marshal covariates for node %d: %w", r.Node, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, r.Node, r.Activated, r.Threshold, r.Before, r.After,
			r.Degree, r.Observed, r.ActivationOrder, r.Seed, r.CriticalExposure, r.Visits, covariates,
		); err != nil {
			return fmt.Errorf("failed to insert record for node %d: %w", r.Node, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, scenario, identifier, model, graph, replicate, seed,
	activation_prob, seed_fraction,
	nodes, edges, seeds, activated, observed, unobserved, visits, epochs, stalled,
	started_at, duration_ns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunSummary, error) {
	var (
		r        RunSummary
		scenario sql.NullString
		seed     int64
		started  string
		duration int64
	)
	err := row.Scan(
		&r.ID, &scenario, &r.Identifier, &r.Model, &r.Graph, &r.Replicate, &seed,
		&r.ActivationProb, &r.SeedFraction,
		&r.Nodes, &r.Edges, &r.Seeds, &r.Activated, &r.Observed, &r.Unobserved, &r.Visits, &r.Epochs, &r.Stalled,
		&started, &duration,
	)
	if err != nil {
		return RunSummary{}, err
	}
	r.Scenario = scenario.String
	r.Seed = uint64(seed)
	r.Duration = time.Duration(duration)
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return RunSummary{}, fmt.Errorf("failed to parse started_at %q: %w", started, err)
	}
	return r, nil
}

// ListRuns returns matching runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Model != "" {
		where = append(where, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.Identifier != "" {
		where = append(where, "identifier = ?")
		args = append(args, filter.Identifier)
	}

	query := "SELECT " + runColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &r, nil
}

// Records returns the records of a run ordered by node.
func (s *SQLiteStore) Records(ctx context.Context, id string) ([]record.Record, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT node, activated, threshold, before_activation_alters, after_activation_alters,
			degree, observed, activation_order, seed, critical_exposure, visits, covariates
		FROM records WHERE run_id = ? ORDER BY node`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var (
			r                         record.Record
			threshold, before, after  sql.NullFloat64
			observed, order, critical sql.NullInt64
			covariates                sql.NullString
		)
		if err := rows.Scan(
			&r.Node, &r.Activated, &threshold, &before, &after,
			&r.Degree, &observed, &order, &r.Seed, &critical, &r.Visits, &covariates,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.RunID = id
		r.Threshold = nullFloat(threshold)
		r.Before = nullFloat(before)
		r.After = nullFloat(after)
		r.Observed = nullInt(observed)
		r.ActivationOrder = nullInt(order)
		r.CriticalExposure = nullInt(critical)
		if covariates.Valid && covariates.String != "" {
			if err := json.Unmarshal([]byte(covariates.String), &r.Covariates); err != nil {
				return nil, fmt.Errorf("failed to decode covariates for node %d: %w", r.Node, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its records.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func marshalCovariates(c map[string]float64) (sql.NullString, error) {
	if len(c) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
