// Package registry records every assessment run in the assessment_runs table
// so finished and in-flight runs can be listed by the status server.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/phantom-risk/shared/database"
)

const schema = `
	CREATE TABLE IF NOT EXISTS assessment_runs (
		run_id               VARCHAR(36) PRIMARY KEY,
		name                 TEXT NOT NULL,
		series               TEXT NOT NULL DEFAULT '',
		feature_type         TEXT NOT NULL,
		data_config          TEXT NOT NULL DEFAULT '',
		anonymization_config TEXT NOT NULL DEFAULT '',
		risk_config          TEXT NOT NULL DEFAULT '',
		status               VARCHAR(16) NOT NULL,
		jobs_total           INTEGER NOT NULL DEFAULT 0,
		worker_errors        INTEGER NOT NULL DEFAULT 0,
		log_file             TEXT NOT NULL DEFAULT '',
		summary_file         TEXT NOT NULL DEFAULT '',
		started_at           TIMESTAMP NOT NULL,
		finished_at          TIMESTAMP NULL
	)`

const index = `
	CREATE INDEX IF NOT EXISTS idx_assessment_runs_started
	ON assessment_runs (started_at DESC, run_id DESC)`

// Storage persists assessment runs
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a registry storage on the client's connection pool
func NewStorage(client *database.Client) *Storage {
	return &Storage{
		db: client.GetDB(),
	}
}

// Migrate creates the registry table if it does not exist yet
func (s *Storage) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, index} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate registry: %w", err)
		}
	}
	return nil
}

// CreateRun inserts a new run record
func (s *Storage) CreateRun(ctx context.Context, run *Run) error {
	query := s.db.Rebind(`
		INSERT INTO assessment_runs (
			run_id, name, series, feature_type,
			data_config, anonymization_config, risk_config,
			status, jobs_total, worker_errors,
			log_file, summary_file, started_at
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)
	`)

	_, err := s.db.ExecContext(
		ctx,
		query,
		run.RunID,
		run.Name,
		run.Series,
		run.FeatureType,
		run.DataConfig,
		run.AnonymizationConfig,
		run.RiskConfig,
		run.Status,
		run.JobsTotal,
		run.WorkerErrors,
		run.LogFile,
		run.SummaryFile,
		run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// FinishRun stores the final status and counters of a run
func (s *Storage) FinishRun(ctx context.Context, runID string, outcome Outcome) error {
	query := s.db.Rebind(`
		UPDATE assessment_runs
		SET status = ?, jobs_total = ?, worker_errors = ?, finished_at = ?
		WHERE run_id = ?
	`)

	result, err := s.db.ExecContext(
		ctx,
		query,
		outcome.Status,
		outcome.JobsTotal,
		outcome.WorkerErrors,
		outcome.FinishedAt.UTC(),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to finish run %s: %w", runID, ErrRunNotFound)
	}

	return nil
}

// GetRun returns a run by id or ErrRunNotFound
func (s *Storage) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := s.db.Rebind(`SELECT * FROM assessment_runs WHERE run_id = ?`)

	var run Run
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// RunFilter narrows ListRuns. Cursor is the last run of the previous page.
type RunFilter struct {
	Status   string
	PageSize int
	Cursor   *RunCursor
}

// RunCursor is the keyset position of a run in started_at, run_id order
type RunCursor struct {
	StartedAt time.Time
	RunID     string
}

// ListRuns returns up to PageSize+1 runs, newest first. The extra row tells
// the caller whether another page exists.
func (s *Storage) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if filter.Cursor != nil {
		conditions = append(conditions, "(started_at, run_id) < (?, ?)")
		args = append(args, filter.Cursor.StartedAt.UTC(), filter.Cursor.RunID)
	}

	query := "SELECT * FROM assessment_runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC, run_id DESC LIMIT ?"
	args = append(args, filter.PageSize+1)

	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}
