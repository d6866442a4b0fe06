// Package orchestrator runs generation jobs against a wall-clock deadline.
// A job's worker goroutine filters the catalog, generates the program chunk by
// chunk and assembles the result while the controller races it against the
// deadline and owns every write to the job record.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lamim/programforge/internal/assembler"
	"github.com/lamim/programforge/internal/candidates"
	"github.com/lamim/programforge/internal/catalog"
	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/internal/generation"
	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/internal/metrics"
	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/pkg/models"
)

// Dependencies are the collaborators a Controller drives
type Dependencies struct {
	Catalog   catalog.Provider
	Profiles  catalog.ProfileResolver
	Filter    *candidates.Filter
	Planner   *planner.Planner
	Executor  *generation.Executor
	Assembler *assembler.Assembler
	Jobs      job.Store
	Artifacts job.ArtifactStore
	Metrics   *metrics.Collector
}

// ErrBusy is returned by Submit when every job slot is taken
var ErrBusy = errors.New("too many generation jobs in progress")

// Result is the final state of one job
type Result struct {
	Job      job.Job
	Artifact *models.Artifact
	Err      error
}

// Controller accepts program requests and runs each as a deadline-bounded job
type Controller struct {
	opts    Options
	deps    Dependencies
	logger  *slog.Logger
	now     func() time.Time
	observe func(job.Job)

	slots chan struct{}
	base  context.Context
	stop  context.CancelFunc
	wg    sync.WaitGroup
}

// New creates a controller
func New(opts Options, deps Dependencies, logger *slog.Logger) *Controller {
	base, stop := context.WithCancel(context.Background())
	opts = opts.withDefaults()
	return &Controller{
		opts:   opts,
		deps:   deps,
		logger: logger.With("component", "orchestrator"),
		now:    time.Now,
		slots:  make(chan struct{}, opts.MaxConcurrentJobs),
		base:   base,
		stop:   stop,
	}
}

// Observe registers fn to receive a snapshot after every successful job record
// write. It must be called before any job is submitted.
func (c *Controller) Observe(fn func(job.Job)) {
	c.observe = fn
}

// ValidateRequest checks a request before a job is created
func (c *Controller) ValidateRequest(req models.ProgramRequest) error {
	if req.Weeks < 1 || req.Weeks > c.opts.MaxWeeks {
		return failure.Validation("weeks must be between 1 and %d (got %d)", c.opts.MaxWeeks, req.Weeks)
	}
	if req.SessionsPerWeek < 1 || req.SessionsPerWeek > c.opts.MaxSessionsPerWeek {
		return failure.Validation("sessions_per_week must be between 1 and %d (got %d)", c.opts.MaxSessionsPerWeek, req.SessionsPerWeek)
	}
	if req.SessionMinutes < 0 {
		return failure.Validation("session_minutes cannot be negative (got %d)", req.SessionMinutes)
	}
	if err := config.ValidateFreeText("goal", req.Goal); err != nil {
		return failure.Validation("%s", err.Error())
	}
	if req.Constraints != nil {
		for _, v := range append(append([]string{}, req.Constraints.Exclusions...), req.Constraints.Aversions...) {
			if err := config.ValidateFreeText("constraint", v); err != nil {
				return failure.Validation("%s", err.Error())
			}
		}
	}
	return nil
}

// Submit accepts a request and runs it in the background. The returned job is
// the queued record; poll the job store for progress.
func (c *Controller) Submit(ctx context.Context, req models.ProgramRequest) (*job.Job, error) {
	if err := c.base.Err(); err != nil {
		return nil, fmt.Errorf("controller is shutting down: %w", err)
	}
	select {
	case c.slots <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	j, chunks, err := c.accept(ctx, req)
	if err != nil {
		<-c.slots
		return nil, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.slots }()
		c.execute(c.base, j, req, chunks)
	}()
	return j, nil
}

// Run accepts a request and blocks until the job reaches a terminal status.
// The returned error covers rejected requests only; a job failure is reported
// in Result.Err.
func (c *Controller) Run(ctx context.Context, req models.ProgramRequest) (*Result, error) {
	j, chunks, err := c.accept(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, j, req, chunks), nil
}

// Shutdown cancels in-flight jobs and waits for their workers to finish
func (c *Controller) Shutdown(ctx context.Context) error {
	c.stop()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

func (c *Controller) accept(ctx context.Context, req models.ProgramRequest) (*job.Job, []planner.Chunk, error) {
	if err := c.ValidateRequest(req); err != nil {
		return nil, nil, err
	}

	chunks, err := c.deps.Planner.Plan(req.Weeks, req.SessionsPerWeek)
	if err != nil {
		return nil, nil, failure.Validation("%s", err.Error())
	}
	if err := planner.Validate(chunks, req.Weeks); err != nil {
		return nil, nil, failure.Wrap(failure.KindInternal, err, "chunk plan is inconsistent")
	}

	now := c.now()
	budget, clipped := c.opts.Budget(req.Weeks)
	j := job.New(req.Weeks, req.SessionsPerWeek, len(chunks)+3, now.Add(budget), now)
	if err := c.deps.Jobs.Create(ctx, j); err != nil {
		return nil, nil, failure.Wrap(failure.KindInternal, err, "could not create the job")
	}

	c.logger.Info("Job accepted",
		"job_id", j.ID,
		"weeks", req.Weeks,
		"sessions_per_week", req.SessionsPerWeek,
		"chunks", len(chunks),
		"budget", budget,
		"structurally_infeasible", clipped)
	return j, chunks, nil
}

// execute races the worker against the job deadline. Exactly one terminal
// write reaches the store; a deadline always beats the worker's own error.
func (c *Controller) execute(parent context.Context, j *job.Job, req models.ProgramRequest, chunks []planner.Chunk) *Result {
	log := c.logger.With("job_id", j.ID)
	tr := newTracker(c.deps.Jobs, j, c.now, c.observe, log)
	defer c.deps.Metrics.JobStarted()()

	ctx, cancel := context.WithDeadline(parent, j.Deadline)
	defer cancel()

	type outcome struct {
		artifact *models.Artifact
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		artifact, err := c.work(ctx, tr, j, req, chunks)
		done <- outcome{artifact, err}
	}()

	select {
	case res := <-done:
		if res.err == nil && ctx.Err() == nil {
			if c.complete(ctx, tr, log) {
				return &Result{Job: tr.current(), Artifact: res.artifact}
			}
			tr.reopen()
		}
		err := res.err
		if ctx.Err() != nil {
			err = c.interruption(ctx, j)
		} else if err == nil {
			err = failure.New(failure.KindInternal, "could not record job completion")
		}
		c.fail(parent, tr, err, log)
		c.discard(parent, tr, log)
		return &Result{Job: tr.current(), Err: err}

	case <-ctx.Done():
		err := c.interruption(ctx, j)
		c.fail(parent, tr, err, log)
		cancel()

		grace := time.NewTimer(c.opts.WorkerGrace)
		defer grace.Stop()
		select {
		case res := <-done:
			log.Debug("Worker exited after interruption", "worker_error", res.err)
		case <-grace.C:
			log.Warn("Worker did not exit within grace period", "grace", c.opts.WorkerGrace)
		}
		c.discard(parent, tr, log)
		return &Result{Job: tr.current(), Err: err}
	}
}

func (c *Controller) complete(ctx context.Context, tr *tracker, log *slog.Logger) bool {
	won := tr.finish(ctx, job.Outcome{
		Status:     job.StatusCompleted,
		Message:    job.ProgressMessage(0, 0, job.PhaseCompleted),
		FinishedAt: c.now(),
	})
	if won {
		c.deps.Metrics.RecordJobOutcome(string(job.StatusCompleted), "")
		log.Info("Job completed")
	}
	return won
}

// fail writes the failure with a detached context so an expired deadline
// cannot block the terminal write
func (c *Controller) fail(parent context.Context, tr *tracker, err error, log *slog.Logger) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.opts.TerminalWriteTimeout)
	defer cancel()

	kind := failure.KindOf(err)
	won := tr.finish(wctx, job.Outcome{
		Status:       job.StatusFailed,
		ErrorKind:    string(kind),
		ErrorMessage: failure.Message(err),
		Message:      job.ProgressMessage(0, 0, job.PhaseFailed),
		FinishedAt:   c.now(),
	})
	if !won {
		return
	}
	c.deps.Metrics.RecordJobOutcome(string(job.StatusFailed), string(kind))
	log.Error("Job failed", "kind", kind, "error", err)
}

// discard removes a program the worker persisted for a job that ended up
// failed. A store may commit and still return late, after the deadline won.
func (c *Controller) discard(parent context.Context, tr *tracker, log *slog.Logger) {
	if !tr.saving.Load() {
		return
	}
	j := tr.current()
	if j.Status != job.StatusFailed {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.opts.TerminalWriteTimeout)
	defer cancel()
	if err := c.deps.Artifacts.DeleteProgram(wctx, j.ID); err != nil {
		log.Error("Failed to discard program of a failed job", "error", err)
		return
	}
	log.Info("Discarded program of a failed job")
}

// interruption explains why ctx ended
func (c *Controller) interruption(ctx context.Context, j *job.Job) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failure.Wrap(failure.KindInternal, ctx.Err(), "generation was cancelled before it finished")
	}

	budget, clipped := c.opts.Budget(j.RequestedWeeks)
	if clipped {
		need := c.opts.BaseSetup + time.Duration(j.RequestedWeeks)*c.opts.PerWeek
		return failure.New(failure.KindDeadlineExceeded,
			"a %d-week program needs ~%s, platform limit %s; request fewer weeks",
			j.RequestedWeeks, roundDuration(need), roundDuration(c.opts.PlatformMax))
	}
	return failure.New(failure.KindDeadlineExceeded,
		"generation took longer than %s this time; please try again", roundDuration(budget))
}

func roundDuration(d time.Duration) string {
	if d >= time.Second {
		return d.Round(time.Second).String()
	}
	return d.String()
}
