package models

import "time"

// Level is a skill tier. Tiers are totally ordered; a higher tier may use every
// exercise a lower tier may use.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Rank returns the position of the tier in the total order (beginner = 1).
// Unknown tiers rank as 0.
func (l Level) Rank() int {
	switch l {
	case LevelBeginner:
		return 1
	case LevelIntermediate:
		return 2
	case LevelAdvanced:
		return 3
	default:
		return 0
	}
}

// Exercise is a catalog item eligible for generation
type Exercise struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`   // strength, cardio, mobility, core
	Equipment   string   `json:"equipment" yaml:"equipment"` // empty or "bodyweight" means none
	Difficulty  Level    `json:"difficulty" yaml:"difficulty"`
	Movement    string   `json:"movement" yaml:"movement"` // push, pull, squat, hinge, lunge, carry, rotation
	BodyRegions []string `json:"body_regions" yaml:"body_regions"`
}

// Constraints narrows the catalog for a single client
type Constraints struct {
	Equipment  []string `json:"equipment" yaml:"equipment"`
	Level      Level    `json:"level" yaml:"level"`
	Exclusions []string `json:"exclusions,omitempty" yaml:"exclusions"` // injuries and restrictions
	Aversions  []string `json:"aversions,omitempty" yaml:"aversions"`
}

// Prescription is one exercise inside a session
type Prescription struct {
	ExerciseID  string `json:"exercise_id"`
	Name        string `json:"name,omitempty"`
	Sets        int    `json:"sets"`
	Reps        string `json:"reps"`
	RestSeconds int    `json:"rest_seconds,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Session is a single workout (a group within a week)
type Session struct {
	Day       int            `json:"day"`
	Name      string         `json:"name"`
	Exercises []Prescription `json:"exercises"`
}

// Week is the repeating unit of a program
type Week struct {
	Number   int       `json:"week"`
	Focus    string    `json:"focus"`
	Sessions []Session `json:"sessions"`
}

// ProgramDraft is the structured payload returned by one generation chunk
type ProgramDraft struct {
	Name        string `json:"program_name"`
	Description string `json:"description,omitempty"`
	Weeks       []Week `json:"weeks"`
}

// Program is the assembled, validated program
type Program struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Weeks       []Week `json:"weeks"`
}

// Summary describes an assembled program and what it cost to produce
type Summary struct {
	MovementBalance     map[string]int `json:"movement_balance"`
	CategoryCounts      map[string]int `json:"category_counts"`
	TotalPrescriptions  int            `json:"total_prescriptions"`
	InputTokens         int            `json:"input_tokens"`
	OutputTokens        int            `json:"output_tokens"`
	EstimatedCostUSD    float64        `json:"estimated_cost_usd"`
	Latency             time.Duration  `json:"latency"`
	Chunks              int            `json:"chunks"`
	DuplicatesDiscarded int            `json:"duplicates_discarded"`
}

// Artifact is the final output of a successful generation job
type Artifact struct {
	JobID     string    `json:"job_id"`
	Program   Program   `json:"program"`
	Summary   Summary   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditRecord is the derived record persisted next to an artifact
type AuditRecord struct {
	ID               string        `json:"id"`
	JobID            string        `json:"job_id"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	InputTokens      int           `json:"input_tokens"`
	OutputTokens     int           `json:"output_tokens"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	Latency          time.Duration `json:"latency"`
	Chunks           int           `json:"chunks"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Usage tracks token consumption for one or more completion calls
type Usage struct {
	Calls        int           `json:"calls"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	Latency      time.Duration `json:"latency"`
}

// Add accumulates other into u
func (u *Usage) Add(other Usage) {
	u.Calls += other.Calls
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostUSD += other.CostUSD
	u.Latency += other.Latency
}

// TotalTokens returns input + output tokens
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}
