// Package job defines the generation job record, its status machine and the
// persistence interfaces the pipeline writes through.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a generation job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusValidating Status = "validating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusQueued:     {StatusRunning, StatusFailed},
	StatusRunning:    {StatusValidating, StatusFailed},
	StatusValidating: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is a legal move. Staying in the
// same non-terminal status is allowed so progress can be updated in place.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is the polling-visible record of one generation request
type Job struct {
	ID              string     `json:"id"`
	RequestedWeeks  int        `json:"requested_weeks"`
	SessionsPerWeek int        `json:"sessions_per_week"`
	Status          Status     `json:"status"`
	ProgressPercent int        `json:"progress_percent"`
	CurrentStep     int        `json:"current_step"`
	TotalSteps      int        `json:"total_steps"`
	ProgressMessage string     `json:"progress_message"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    *string    `json:"error_message"`
	Deadline        time.Time  `json:"deadline"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// New creates a queued job with a fresh id
func New(weeks, sessionsPerWeek, totalSteps int, deadline, now time.Time) *Job {
	return &Job{
		ID:              uuid.New().String(),
		RequestedWeeks:  weeks,
		SessionsPerWeek: sessionsPerWeek,
		Status:          StatusQueued,
		TotalSteps:      totalSteps,
		ProgressMessage: ProgressMessage(0, 0, PhaseQueued),
		Deadline:        deadline,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy
func (j *Job) Clone() *Job {
	c := *j
	if j.ErrorMessage != nil {
		msg := *j.ErrorMessage
		c.ErrorMessage = &msg
	}
	if j.FinishedAt != nil {
		at := *j.FinishedAt
		c.FinishedAt = &at
	}
	return &c
}

// Progress is a non-terminal update of the job record
type Progress struct {
	Status      Status
	CurrentStep int
	TotalSteps  int
	Percent     int
	Message     string
}

// Outcome is the single terminal write of a job
type Outcome struct {
	Status       Status
	ErrorKind    string
	ErrorMessage string
	Message      string
	FinishedAt   time.Time
}

// Apply copies p onto the record
func (j *Job) Apply(p Progress, now time.Time) {
	j.Status = p.Status
	j.CurrentStep = p.CurrentStep
	j.TotalSteps = p.TotalSteps
	j.ProgressPercent = p.Percent
	j.ProgressMessage = p.Message
	j.UpdatedAt = now
}

// Finish copies o onto the record
func (j *Job) Finish(o Outcome) {
	j.Status = o.Status
	j.ProgressMessage = o.Message
	j.ErrorKind = o.ErrorKind
	if o.Status == StatusFailed {
		msg := o.ErrorMessage
		j.ErrorMessage = &msg
	} else {
		j.ProgressPercent = 100
		j.CurrentStep = j.TotalSteps
	}
	at := o.FinishedAt
	j.FinishedAt = &at
	j.UpdatedAt = at
}

// Predecessors returns every status from which to may be entered
func Predecessors(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusQueued, StatusRunning, StatusValidating} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
