package models

// ProgramRequest asks for a multi-week program. Either Constraints or
// ProfileID supplies the filter input; inline constraints win when both are set.
type ProgramRequest struct {
	Weeks           int          `json:"weeks" yaml:"weeks"`
	SessionsPerWeek int          `json:"sessions_per_week" yaml:"sessions_per_week"`
	SessionMinutes  int          `json:"session_minutes" yaml:"session_minutes"`
	Goal            string       `json:"goal" yaml:"goal"`
	Constraints     *Constraints `json:"constraints,omitempty" yaml:"constraints"`
	ProfileID       string       `json:"profile_id,omitempty" yaml:"profile_id"`
}
