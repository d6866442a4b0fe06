package job

import (
	"context"
	"errors"

	"github.com/lamim/programforge/pkg/models"
)

var (
	// ErrNotFound is returned when no job or artifact exists for an id
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned by writes against a job that already finished
	ErrTerminal = errors.New("job already in a terminal state")
	// ErrInvalidTransition is returned for a status move the state machine forbids
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store persists job records. Finish must be a compare-and-swap: it only
// succeeds while the stored status is non-terminal.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	UpdateProgress(ctx context.Context, id string, p Progress) error
	Finish(ctx context.Context, id string, o Outcome) error
}

// ArtifactStore persists finished programs. SaveProgram is idempotent per job:
// a retry replaces the program's children rather than duplicating them.
// Stores that also hold the job record refuse SaveProgram with ErrTerminal once
// the job has finished. DeleteProgram of a missing program is not an error.
type ArtifactStore interface {
	SaveProgram(ctx context.Context, a *models.Artifact) error
	DeleteProgram(ctx context.Context, jobID string) error
	SaveAudit(ctx context.Context, rec models.AuditRecord) error
}

// ArtifactReader loads a persisted program
type ArtifactReader interface {
	LoadProgram(ctx context.Context, jobID string) (*models.Artifact, error)
}
