package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/internal/orchestrator"
	"github.com/lamim/programforge/pkg/models"
)

// maxRequestBytes caps the submission body
const maxRequestBytes = 64 << 10

// Submitter starts a generation job
type Submitter interface {
	Submit(ctx context.Context, req models.ProgramRequest) (*job.Job, error)
}

// JobReader reads job records
type JobReader interface {
	Get(ctx context.Context, id string) (*job.Job, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind,omitempty"`
}

// SubmitResponse acknowledges an accepted request
type SubmitResponse struct {
	JobID    string     `json:"job_id"`
	Status   job.Status `json:"status"`
	Deadline time.Time  `json:"deadline"`
}

// JobResponse is the polling view of a job
type JobResponse struct {
	JobID           string     `json:"job_id"`
	Status          job.Status `json:"status"`
	ProgressPercent int        `json:"progress_percent"`
	CurrentStep     int        `json:"current_step"`
	TotalSteps      int        `json:"total_steps"`
	ProgressMessage string     `json:"progress_message"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    *string    `json:"error_message"`
	Deadline        time.Time  `json:"deadline"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	jobs     Submitter
	store    JobReader
	programs job.ArtifactReader
	logger   *slog.Logger
}

// NewHandlers creates the handler set
func NewHandlers(jobs Submitter, store JobReader, programs job.ArtifactReader, logger *slog.Logger) *Handlers {
	return &Handlers{jobs: jobs, store: store, programs: programs, logger: logger.With("component", "http_handlers")}
}

// SubmitProgram handles POST /v1/programs
func (h *Handlers) SubmitProgram(w http.ResponseWriter, r *http.Request) {
	var req models.ProgramRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	j, err := h.jobs.Submit(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrBusy):
		h.httpError(w, "Too many programs are being generated, try again shortly", http.StatusServiceUnavailable)
		return
	case failure.Is(err, failure.KindValidationError):
		h.failureError(w, err, http.StatusBadRequest)
		return
	default:
		h.logger.Error("Failed to submit job", "error", err)
		h.httpError(w, "Failed to submit job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusAccepted, SubmitResponse{JobID: j.ID, Status: j.Status, Deadline: j.Deadline})
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	h.respondJson(w, http.StatusOK, JobResponse{
		JobID:           j.ID,
		Status:          j.Status,
		ProgressPercent: j.ProgressPercent,
		CurrentStep:     j.CurrentStep,
		TotalSteps:      j.TotalSteps,
		ProgressMessage: j.ProgressMessage,
		ErrorKind:       j.ErrorKind,
		ErrorMessage:    j.ErrorMessage,
		Deadline:        j.Deadline,
		UpdatedAt:       j.UpdatedAt,
	})
}

// GetProgram handles GET /v1/programs/{id}, where id is the job id
func (h *Handlers) GetProgram(w http.ResponseWriter, r *http.Request) {
	j, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	if j.Status != job.StatusCompleted {
		h.httpError(w, "Program is not ready (status "+string(j.Status)+")", http.StatusConflict)
		return
	}

	a, err := h.programs.LoadProgram(r.Context(), j.ID)
	if errors.Is(err, job.ErrNotFound) {
		h.httpError(w, "Program not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load program", "job_id", j.ID, "error", err)
		h.httpError(w, "Failed to load program", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, a)
}

// Healthz is a liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loadJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	id := r.PathValue("id")
	// Job ids are uuids; anything else cannot name a job
	if _, err := uuid.Parse(id); err != nil {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return nil, false
	}
	j, err := h.store.Get(r.Context(), id)
	if errors.Is(err, job.ErrNotFound) {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to load job", "job_id", id, "error", err)
		h.httpError(w, "Failed to load job", http.StatusInternalServerError)
		return nil, false
	}
	return j, true
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

func (h *Handlers) failureError(w http.ResponseWriter, err error, code int) {
	h.respondJson(w, code, ErrorResponse{
		Error: failure.Message(err),
		Code:  strconv.Itoa(code),
		Kind:  string(failure.KindOf(err)),
	})
}
