package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lamim/programforge/pkg/models"
)

// MemoryStore keeps jobs, artifacts and audit records in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	artifacts map[string]*models.Artifact
	audits    []models.AuditRecord
	now       func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*Job),
		artifacts: make(map[string]*models.Artifact),
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, j *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryStore) UpdateProgress(ctx context.Context, id string, p Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if !CanTransition(j.Status, p.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, p.Status)
	}
	j.Apply(p, s.now())
	return nil
}

func (s *MemoryStore) Finish(ctx context.Context, id string, o Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if !CanTransition(j.Status, o.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, o.Status)
	}
	j.Finish(o)
	return nil
}

func (s *MemoryStore) SaveProgram(ctx context.Context, a *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[a.JobID]; ok && j.Status.Terminal() {
		return ErrTerminal
	}
	cp := *a
	s.artifacts[a.JobID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProgram(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, jobID)
	return nil
}

func (s *MemoryStore) SaveAudit(ctx context.Context, rec models.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, rec)
	return nil
}

func (s *MemoryStore) LoadProgram(ctx context.Context, jobID string) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// Audits returns the audit records written so far
func (s *MemoryStore) Audits() []models.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditRecord(nil), s.audits...)
}

// ProgramCount returns the number of persisted programs
func (s *MemoryStore) ProgramCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}
