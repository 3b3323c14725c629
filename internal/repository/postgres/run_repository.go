package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// RunStatus represents the current state of an estimation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run tracks a single estimation for a reference date.
type Run struct {
	ID           int64      `db:"id" json:"id"`
	RefDate      time.Time  `db:"ref_date" json:"ref_date"`
	WindowMode   string     `db:"window_mode" json:"window_mode"`
	Status       RunStatus  `db:"status" json:"status"`
	Materials    int        `db:"materials" json:"materials"`
	Estimated    int        `db:"estimated" json:"estimated"`
	Skipped      int        `db:"skipped" json:"skipped"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
}

// EstimateRecord is one persisted per-material outcome.
type EstimateRecord struct {
	RunID          int64  `db:"run_id" json:"run_id"`
	MaterialID     int64  `db:"material_id" json:"material_id"`
	Outcome        string `db:"outcome" json:"outcome"`
	DaysOfCoverage int    `db:"days_of_coverage" json:"days_of_coverage"`
	SkipReason     string `db:"skip_reason" json:"skip_reason,omitempty"`
}

// RunRepository handles database operations for run tracking
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// StartRun records a run in progress and returns its id.
func (r *RunRepository) StartRun(ctx context.Context, ref time.Time, windowMode string, materials int) (int64, error) {
	query := `
		INSERT INTO lifetime_runs (ref_date, window_mode, status, materials, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		domain.Day(ref), windowMode, RunStatusRunning, materials, time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// FinishRun stores every outcome and marks the run completed, atomically.
func (r *RunRepository) FinishRun(ctx context.Context, id int64, results []domain.Result) error {
	records := estimateRecords(id, results)
	estimated := 0
	for _, rec := range records {
		if rec.Outcome == string(domain.OutcomeEstimated) {
			estimated++
		}
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if len(records) > 0 {
			insert := `
				INSERT INTO lifetime_estimates (run_id, material_id, outcome, days_of_coverage, skip_reason)
				VALUES (:run_id, :material_id, :outcome, :days_of_coverage, :skip_reason)
			`
			for start := 0; start < len(records); start += insertBatchSize {
				end := min(start+insertBatchSize, len(records))
				if _, err := tx.NamedExecContext(ctx, insert, records[start:end]); err != nil {
					return fmt.Errorf("failed to insert estimates: %w", err)
				}
			}
		}

		update := `
			UPDATE lifetime_runs
			SET status = $1, estimated = $2, skipped = $3, completed_at = $4
			WHERE id = $5
		`
		_, err := tx.ExecContext(ctx, update,
			RunStatusCompleted, estimated, len(records)-estimated, time.Now(), id)
		return err
	})
}

// insertBatchSize keeps each multi-row insert under the parameter limit.
const insertBatchSize = 1000

// FailRun marks a run failed with cause.
func (r *RunRepository) FailRun(ctx context.Context, id int64, cause error) error {
	query := `
		UPDATE lifetime_runs
		SET status = $1, completed_at = $2, error_message = $3
		WHERE id = $4
	`
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := r.db.ExecContext(ctx, query, RunStatusFailed, time.Now(), msg, id)
	return err
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	err := r.db.GetContext(ctx, &run, `SELECT * FROM lifetime_runs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestRun returns the most recent completed run for ref, or nil.
func (r *RunRepository) LatestRun(ctx context.Context, ref time.Time) (*Run, error) {
	query := `
		SELECT * FROM lifetime_runs
		WHERE ref_date = $1 AND status = $2
		ORDER BY id DESC
		LIMIT 1
	`
	var run Run
	err := r.db.GetContext(ctx, &run, query, domain.Day(ref), RunStatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListEstimates returns the outcomes stored for a run, by material.
func (r *RunRepository) ListEstimates(ctx context.Context, runID int64) ([]EstimateRecord, error) {
	var records []EstimateRecord
	query := `
		SELECT run_id, material_id, outcome, days_of_coverage, skip_reason
		FROM lifetime_estimates
		WHERE run_id = $1
		ORDER BY material_id
	`
	if err := r.db.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, err
	}
	return records, nil
}

func estimateRecords(runID int64, results []domain.Result) []EstimateRecord {
	records := make([]EstimateRecord, len(results))
	for i, res := range results {
		records[i] = EstimateRecord{
			RunID:          runID,
			MaterialID:     int64(res.MaterialID),
			Outcome:        string(res.Outcome),
			DaysOfCoverage: res.DaysOfCoverage,
			SkipReason:     res.Reason(),
		}
	}
	return records
}
