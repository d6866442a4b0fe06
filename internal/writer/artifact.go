package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/pkg/models"
)

// FileArtifactStore persists programs as JSON files in a session directory
// and appends audit records to a JSONL file
type FileArtifactStore struct {
	session *SessionManager
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewFileArtifactStore creates a store rooted at the session directory
func NewFileArtifactStore(session *SessionManager, logger *slog.Logger) *FileArtifactStore {
	return &FileArtifactStore{
		session: session,
		logger:  logger.With("component", "artifact_store"),
	}
}

// SaveProgram writes the artifact atomically: temp file then rename.
// Saving the same job twice replaces the file.
func (s *FileArtifactStore) SaveProgram(ctx context.Context, a *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.session.GetProgramPath(a.JobID)
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	s.logger.Info("Program saved", "job_id", a.JobID, "path", path)
	return nil
}

// DeleteProgram removes a saved program file
func (s *FileArtifactStore) DeleteProgram(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.session.GetProgramPath(jobID)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove program: %w", err)
	}
	s.logger.Info("Program removed", "job_id", jobID, "path", path)
	return nil
}

// SaveAudit appends one JSON line to the audit log
func (s *FileArtifactStore) SaveAudit(ctx context.Context, rec models.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.session.GetAuditPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// LoadProgram reads a previously saved artifact
func (s *FileArtifactStore) LoadProgram(ctx context.Context, jobID string) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.session.GetProgramPath(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, job.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	var a models.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode program: %w", err)
	}
	return &a, nil
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
