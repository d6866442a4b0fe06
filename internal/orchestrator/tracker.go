package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lamim/programforge/internal/job"
)

// tracker is the only writer of a job record. Progress writes and the terminal
// write are serialised under mu; once a terminal write has been attempted every
// later write is dropped.
type tracker struct {
	mu       sync.Mutex
	store    job.Store
	snapshot job.Job
	terminal bool
	now      func() time.Time
	observe  func(job.Job)
	logger   *slog.Logger

	// saving is set once the worker starts persisting the program
	saving atomic.Bool
}

func newTracker(store job.Store, j *job.Job, now func() time.Time, observe func(job.Job), logger *slog.Logger) *tracker {
	return &tracker{
		store:    store,
		snapshot: *j.Clone(),
		now:      now,
		observe:  observe,
		logger:   logger,
	}
}

// progress records a non-terminal update. Steps never move backwards.
func (t *tracker) progress(ctx context.Context, status job.Status, step int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal {
		return
	}

	step = max(step, t.snapshot.CurrentStep)
	p := job.Progress{
		Status:      status,
		CurrentStep: step,
		TotalSteps:  t.snapshot.TotalSteps,
		Percent:     percent(step, t.snapshot.TotalSteps),
		Message:     message,
	}
	if err := t.store.UpdateProgress(ctx, t.snapshot.ID, p); err != nil {
		if errors.Is(err, job.ErrTerminal) {
			t.terminal = true
		}
		t.logger.Warn("Failed to record progress", "status", status, "step", step, "error", err)
		return
	}
	t.snapshot.Apply(p, t.now())
	t.notify()
}

// finish attempts the terminal write and reports whether it won
func (t *tracker) finish(ctx context.Context, o job.Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal {
		return false
	}
	t.terminal = true

	if err := t.store.Finish(ctx, t.snapshot.ID, o); err != nil {
		t.logger.Error("Failed to record terminal status", "status", o.Status, "error", err)
		return false
	}
	t.snapshot.Finish(o)
	t.notify()
	return true
}

// reopen clears the terminal flag after a terminal write that never reached the store
func (t *tracker) reopen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshot.Status.Terminal() {
		return
	}
	t.terminal = false
}

func (t *tracker) current() job.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.snapshot.Clone()
}

func (t *tracker) notify() {
	if t.observe != nil {
		t.observe(*t.snapshot.Clone())
	}
}

func percent(step, total int) int {
	if total <= 0 {
		return 0
	}
	return min(100, step*100/total)
}
