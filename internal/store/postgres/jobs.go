package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lamim/programforge/internal/job"
)

const jobColumns = `id, requested_weeks, sessions_per_week, status, progress_percent, current_step,
	total_steps, progress_message, error_kind, error_message, deadline, created_at, updated_at, finished_at`

// Create inserts a new job row
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	query := `
		INSERT INTO generation_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		j.ID,
		j.RequestedWeeks,
		j.SessionsPerWeek,
		j.Status,
		j.ProgressPercent,
		j.CurrentStep,
		j.TotalSteps,
		j.ProgressMessage,
		j.ErrorKind,
		j.ErrorMessage,
		j.Deadline,
		j.CreatedAt,
		j.UpdatedAt,
		j.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	return nil
}

// Get loads a job by id
func (s *Store) Get(ctx context.Context, id string) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	var (
		j        job.Job
		errMsg   sql.NullString
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.RequestedWeeks, &j.SessionsPerWeek, &j.Status,
		&j.ProgressPercent, &j.CurrentStep, &j.TotalSteps, &j.ProgressMessage,
		&j.ErrorKind, &errMsg, &j.Deadline, &j.CreatedAt, &j.UpdatedAt, &finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, job.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job %s: %w", id, err)
	}
	if errMsg.Valid {
		j.ErrorMessage = &errMsg.String
	}
	if finished.Valid {
		j.FinishedAt = &finished.Time
	}
	return &j, nil
}

// UpdateProgress writes a non-terminal update. The WHERE clause only matches
// rows whose current status may legally move to p.Status.
func (s *Store) UpdateProgress(ctx context.Context, id string, p job.Progress) error {
	query := `
		UPDATE generation_jobs
		SET status = $2, current_step = $3, total_steps = $4, progress_percent = $5,
			progress_message = $6, updated_at = $7
		WHERE id = $1 AND status = ANY($8)
	`
	res, err := s.db.ExecContext(ctx, query,
		id, p.Status, p.CurrentStep, p.TotalSteps, p.Percent, p.Message, time.Now().UTC(),
		pq.Array(statusStrings(job.Predecessors(p.Status))),
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return s.checkApplied(ctx, id, res)
}

// Finish performs the compare-and-swap terminal transition
func (s *Store) Finish(ctx context.Context, id string, o job.Outcome) error {
	var errMsg *string
	percent := sql.NullInt64{}
	if o.Status == job.StatusFailed {
		errMsg = &o.ErrorMessage
	} else {
		percent = sql.NullInt64{Int64: 100, Valid: true}
	}

	query := `
		UPDATE generation_jobs
		SET status = $2, error_kind = $3, error_message = $4, progress_message = $5,
			progress_percent = COALESCE($6, progress_percent),
			current_step = CASE WHEN $6 IS NULL THEN current_step ELSE total_steps END,
			finished_at = $7, updated_at = $7
		WHERE id = $1 AND status = ANY($8)
	`
	res, err := s.db.ExecContext(ctx, query,
		id, o.Status, o.ErrorKind, errMsg, o.Message, percent, o.FinishedAt.UTC(),
		pq.Array(statusStrings(job.Predecessors(o.Status))),
	)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	return s.checkApplied(ctx, id, res)
}

// checkApplied explains why a conditional update touched no rows
func (s *Store) checkApplied(ctx context.Context, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status job.Status
	err = s.db.QueryRowContext(ctx, `SELECT status FROM generation_jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return job.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select job status %s: %w", id, err)
	}
	if status.Terminal() {
		return job.ErrTerminal
	}
	return fmt.Errorf("%w: from %s", job.ErrInvalidTransition, status)
}

func statusStrings(in []job.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
