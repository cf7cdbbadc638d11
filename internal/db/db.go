// Package db provides PostgreSQL storage for greeting run history.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS greeting_runs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		category TEXT NOT NULL,
		segment TEXT NOT NULL DEFAULT '',
		tone TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		min_sincerity DOUBLE PRECISION NOT NULL,
		max_retries INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		final_text TEXT,
		composite DOUBLE PRECISION,
		attempts INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_greeting_runs_created_at ON greeting_runs(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS greeting_attempts (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES greeting_runs(id) ON DELETE CASCADE,
		attempt INTEGER NOT NULL,
		text TEXT,
		sincerity DOUBLE PRECISION NOT NULL DEFAULT 0,
		warmth DOUBLE PRECISION NOT NULL DEFAULT 0,
		personalization DOUBLE PRECISION NOT NULL DEFAULT 0,
		authenticity DOUBLE PRECISION NOT NULL DEFAULT 0,
		composite DOUBLE PRECISION NOT NULL DEFAULT 0,
		accepted BOOLEAN NOT NULL DEFAULT FALSE,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (run_id, attempt)
	)`,
}

// Migrate creates the run history tables when they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate run history: %w", err)
		}
	}
	return nil
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateRun creates a new run record in the running state and returns its ID
func (db *DB) CreateRun(ctx context.Context, in RunInput) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO greeting_runs (category, segment, tone, client_name, min_sincerity, max_retries, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		in.Category, in.Segment, in.Tone, in.ClientName, in.MinSincerity, in.MaxRetries, RunStatusRunning,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// RecordAttempt stores one attempt of a run. Re-recording an attempt number
// overwrites it.
func (db *DB) RecordAttempt(ctx context.Context, a Attempt) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO greeting_attempts (run_id, attempt, text, sincerity, warmth, personalization,
		                                authenticity, composite, accepted, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (run_id, attempt) DO UPDATE
		 SET text = EXCLUDED.text, sincerity = EXCLUDED.sincerity, warmth = EXCLUDED.warmth,
		     personalization = EXCLUDED.personalization, authenticity = EXCLUDED.authenticity,
		     composite = EXCLUDED.composite, accepted = EXCLUDED.accepted,
		     error_message = EXCLUDED.error_message, created_at = NOW()`,
		a.RunID, a.Attempt, nullText(a.Text), a.Sincerity, a.Warmth, a.Personalization,
		a.Authenticity, a.Composite, a.Accepted, nullText(a.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt %d: %w", a.Attempt, err)
	}
	return nil
}

// CompleteRun writes the final state of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, res RunResult) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE greeting_runs
		 SET status = $1, final_text = $2, composite = $3, attempts = $4,
		     error_message = $5, completed_at = NOW()
		 WHERE id = $6`,
		res.Status, nullText(res.FinalText), res.Composite, res.Attempts, nullText(res.ErrorMessage), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

const runColumns = `id, category, segment, tone, client_name, min_sincerity, max_retries, status,
	COALESCE(final_text, ''), composite, attempts, COALESCE(error_message, ''), created_at, completed_at`

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Category, &run.Segment, &run.Tone, &run.ClientName,
		&run.MinSincerity, &run.MaxRetries, &run.Status, &run.FinalText, &run.Composite,
		&run.Attempts, &run.ErrorMessage, &run.CreatedAt, &run.CompletedAt)
	return run, err
}

// GetRun retrieves a run by ID. A missing run yields nil, nil.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM greeting_runs WHERE id = $1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns retrieves recent runs, newest first, with optional filters
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM greeting_runs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argNum)
		args = append(args, filters.Category)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListAttempts retrieves the attempts of a run in order
func (db *DB) ListAttempts(ctx context.Context, runID uuid.UUID) ([]Attempt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, attempt, COALESCE(text, ''), sincerity, warmth, personalization,
		        authenticity, composite, accepted, COALESCE(error_message, ''), created_at
		 FROM greeting_attempts WHERE run_id = $1 ORDER BY attempt`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.RunID, &a.Attempt, &a.Text, &a.Sincerity, &a.Warmth,
			&a.Personalization, &a.Authenticity, &a.Composite, &a.Accepted, &a.ErrorMessage,
			&a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// DeleteRun deletes a run and its attempts (via cascade)
func (db *DB) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM greeting_runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}
