package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lamim/programforge/internal/assembler"
	"github.com/lamim/programforge/internal/catalog"
	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/internal/generation"
	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/pkg/models"
)

// work is the generation loop. Chunks run strictly in order so each one can
// see a digest of what has been generated before it.
func (c *Controller) work(ctx context.Context, tr *tracker, j *job.Job, req models.ProgramRequest, chunks []planner.Chunk) (*models.Artifact, error) {
	log := c.logger.With("job_id", j.ID)
	started := c.now()
	total := len(chunks)

	tr.progress(ctx, job.StatusRunning, 0, job.ProgressMessage(0, total, job.PhaseFiltering))

	constraints, err := catalog.ResolveConstraints(ctx, req, c.deps.Profiles)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, failure.Wrap(failure.KindValidationError, err, "could not resolve profile %q", req.ProfileID)
	}

	exercises, err := c.deps.Catalog.ListExercises(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, failure.Wrap(failure.KindInternal, err, "could not load the exercise catalog")
	}

	pool, err := c.deps.Filter.Build(exercises, constraints, req.SessionsPerWeek)
	if pool != nil {
		c.deps.Metrics.RecordFilterRejections(pool.Stats.ByStage())
	}
	if err != nil {
		return nil, err
	}
	tr.progress(ctx, job.StatusRunning, 1, job.ProgressMessage(0, total, job.PhaseFiltered))

	brief := generation.Brief{Request: req, Constraints: constraints, Pool: pool}
	meter := &generation.UsageMeter{}
	partials := make([]*generation.PartialResult, 0, total)

	for i, chunk := range chunks {
		if i > 0 {
			assembled, _ := assembler.Merge(partials)
			chunk.Context = planner.BuildCarriedContext(assembled, c.opts.ContextWindow, c.opts.ContextSample)
		}

		tr.progress(ctx, job.StatusRunning, 1+i, job.ProgressMessage(i, total, job.PhaseChunkStart))
		partial, err := c.generateChunk(ctx, chunk, brief, meter, log)
		if err != nil {
			return nil, err
		}
		partials = append(partials, partial)
		tr.progress(ctx, job.StatusRunning, 2+i, job.ProgressMessage(i, total, job.PhaseChunkDone))
	}

	tr.progress(ctx, job.StatusValidating, total+1, job.ProgressMessage(0, total, job.PhaseValidating))
	artifact, err := c.deps.Assembler.Assemble(assembler.Input{
		JobID:          j.ID,
		RequestedWeeks: req.Weeks,
		Partials:       partials,
		Pool:           pool,
		Usage:          meter.Total(),
		Elapsed:        c.now().Sub(started),
	})
	if err != nil {
		return nil, err
	}

	tr.progress(ctx, job.StatusValidating, total+2, job.ProgressMessage(0, total, job.PhaseSaving))
	tr.saving.Store(true)
	if err := c.deps.Artifacts.SaveProgram(ctx, artifact); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, failure.Wrap(failure.KindInternal, err, "could not save the program")
	}
	c.audit(ctx, artifact, meter.Total(), log)

	log.Info("Program assembled",
		"weeks", len(artifact.Program.Weeks),
		"chunks", artifact.Summary.Chunks,
		"input_tokens", artifact.Summary.InputTokens,
		"output_tokens", artifact.Summary.OutputTokens,
		"estimated_cost_usd", artifact.Summary.EstimatedCostUSD)
	return artifact, nil
}

// generateChunk runs one chunk, retrying truncated output with a larger
// budget up to the configured number of times
func (c *Controller) generateChunk(ctx context.Context, chunk planner.Chunk, brief generation.Brief, meter *generation.UsageMeter, log *slog.Logger) (*generation.PartialResult, error) {
	for attempt := 0; ; attempt++ {
		partial, err := c.deps.Executor.Execute(ctx, chunk, brief, meter)
		if err == nil {
			return partial, nil
		}
		var fe *failure.Error
		if ctx.Err() != nil || !errors.As(err, &fe) || !fe.Retryable() || attempt >= c.opts.TruncationRetries {
			return nil, err
		}

		next := c.deps.Planner.Enlarge(chunk.TokenBudget)
		if next <= chunk.TokenBudget {
			return nil, err
		}
		log.Warn("Retrying truncated chunk with a larger budget",
			"chunk", chunk.Index,
			"attempt", attempt+1,
			"token_budget", chunk.TokenBudget,
			"next_budget", next)
		chunk.TokenBudget = next
	}
}

// audit records cost and latency. A failed audit write never fails the job.
func (c *Controller) audit(ctx context.Context, a *models.Artifact, usage models.Usage, log *slog.Logger) {
	rec := models.AuditRecord{
		ID:               uuid.New().String(),
		JobID:            a.JobID,
		Provider:         c.opts.Provider,
		Model:            c.opts.Model,
		InputTokens:      usage.InputTokens,
		OutputTokens:     usage.OutputTokens,
		EstimatedCostUSD: usage.CostUSD,
		Latency:          a.Summary.Latency,
		Chunks:           a.Summary.Chunks,
		CreatedAt:        c.now().UTC(),
	}
	if err := c.deps.Artifacts.SaveAudit(ctx, rec); err != nil {
		c.deps.Metrics.RecordAuditWriteFailure()
		log.Warn("Failed to save audit record", "error", err)
	}
}
