package pipeline

import (
	"context"
	"database/sql"
	"time"
)

// Repository handles database operations for run tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts the run record in processing state
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO pipeline_runs (
			id, source, status, sales_rows, purchase_rows, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.ID, run.Source, run.Status, run.SalesRows, run.PurchaseRows, run.StartedAt,
	)
	return err
}

// UpdateRun updates an existing run
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1, summary_rows = $2, alert_count = $3,
		    completed_at = $4, error_message = $5
		WHERE id = $6
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.SummaryRows, run.AlertCount,
		run.CompletedAt, nullString(run.ErrorMessage), run.ID,
	)
	return err
}

// GetRun retrieves a run by ID. It returns nil when the run does not exist.
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, source, status, sales_rows, purchase_rows, summary_rows,
		       alert_count, started_at, completed_at, COALESCE(error_message, '')
		FROM pipeline_runs
		WHERE id = $1
	`

	run := &Run{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Source, &run.Status, &run.SalesRows, &run.PurchaseRows,
		&run.SummaryRows, &run.AlertCount, &run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns retrieves the most recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, source, status, sales_rows, purchase_rows, summary_rows,
		       alert_count, started_at, completed_at, COALESCE(error_message, '')
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID, &run.Source, &run.Status, &run.SalesRows, &run.PurchaseRows,
			&run.SummaryRows, &run.AlertCount, &run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// RunStats summarizes runs since a point in time
type RunStats struct {
	Completed     int64      `json:"completed"`
	Failed        int64      `json:"failed"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`
}

// GetRunStats retrieves run statistics
func (r *Repository) GetRunStats(ctx context.Context, since time.Time) (*RunStats, error) {
	query := `
		SELECT
			COUNT(CASE WHEN status = $1 THEN 1 END) AS completed,
			COUNT(CASE WHEN status = $2 THEN 1 END) AS failed,
			MAX(completed_at) AS last_completed
		FROM pipeline_runs
		WHERE started_at >= $3
	`

	stats := &RunStats{}
	err := r.db.QueryRowContext(ctx, query, StatusCompleted, StatusFailed, since).Scan(
		&stats.Completed, &stats.Failed, &stats.LastCompleted,
	)
	if err == sql.ErrNoRows {
		return &RunStats{}, nil
	}

	return stats, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
