package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/pkg/models"
)

// SaveProgram upserts the program row and replaces its children in one
// transaction, so retries never duplicate sessions or prescriptions. The job
// row is locked first; a job that already finished gets job.ErrTerminal.
func (s *Store) SaveProgram(ctx context.Context, a *models.Artifact) (err error) {
	document, err := json.Marshal(a.Program)
	if err != nil {
		return fmt.Errorf("marshal program: %w", err)
	}
	summary, err := json.Marshal(a.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM generation_jobs WHERE id = $1 FOR UPDATE`, a.JobID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		err = job.ErrNotFound
		return err
	}
	if err != nil {
		return fmt.Errorf("lock job %s: %w", a.JobID, err)
	}
	if job.Status(status).Terminal() {
		err = job.ErrTerminal
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO programs (job_id, name, description, summary, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
			summary = EXCLUDED.summary, document = EXCLUDED.document
	`, a.JobID, a.Program.Name, a.Program.Description, summary, document, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert program %s: %w", a.JobID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM program_prescriptions WHERE job_id = $1`, a.JobID); err != nil {
		return fmt.Errorf("clear prescriptions: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM program_sessions WHERE job_id = $1`, a.JobID); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	for _, w := range a.Program.Weeks {
		for _, sess := range w.Sessions {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO program_sessions (job_id, week_number, week_focus, day, name)
				VALUES ($1, $2, $3, $4, $5)
			`, a.JobID, w.Number, w.Focus, sess.Day, sess.Name)
			if err != nil {
				return fmt.Errorf("insert session week %d day %d: %w", w.Number, sess.Day, err)
			}
			for pos, p := range sess.Exercises {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO program_prescriptions (job_id, week_number, day, position, exercise_id, sets, reps, rest_seconds, notes)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				`, a.JobID, w.Number, sess.Day, pos, p.ExerciseID, p.Sets, p.Reps, p.RestSeconds, p.Notes)
				if err != nil {
					return fmt.Errorf("insert prescription week %d day %d: %w", w.Number, sess.Day, err)
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit program %s: %w", a.JobID, err)
	}
	return nil
}

// DeleteProgram removes a program; sessions and prescriptions cascade
func (s *Store) DeleteProgram(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM programs WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete program %s: %w", jobID, err)
	}
	return nil
}

// LoadProgram reads a persisted program back from its stored document
func (s *Store) LoadProgram(ctx context.Context, jobID string) (*models.Artifact, error) {
	var document, summary []byte
	a := &models.Artifact{JobID: jobID}
	err := s.db.QueryRowContext(ctx,
		`SELECT document, summary, created_at FROM programs WHERE job_id = $1`, jobID,
	).Scan(&document, &summary, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, job.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select program %s: %w", jobID, err)
	}
	if err := json.Unmarshal(document, &a.Program); err != nil {
		return nil, fmt.Errorf("decode program %s: %w", jobID, err)
	}
	if err := json.Unmarshal(summary, &a.Summary); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", jobID, err)
	}
	return a, nil
}

// SaveAudit inserts the cost and latency record for a job
func (s *Store) SaveAudit(ctx context.Context, rec models.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_audits (id, job_id, provider, model, input_tokens, output_tokens,
			estimated_cost_usd, latency_ms, chunks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.JobID, rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.EstimatedCostUSD, rec.Latency.Milliseconds(), rec.Chunks, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit for job %s: %w", rec.JobID, err)
	}
	return nil
}
