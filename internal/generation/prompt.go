package generation

import (
	"fmt"

	"github.com/lamim/programforge/internal/candidates"
	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/internal/util"
	"github.com/lamim/programforge/pkg/models"
)

const (
	defaultGoal           = "general fitness"
	defaultSessionMinutes = 45
)

// Prompts holds the templates rendered for every chunk
type Prompts struct {
	System string
	Chunk  string
}

// Brief is the per-job input shared by every chunk's prompt
type Brief struct {
	Request     models.ProgramRequest
	Constraints models.Constraints
	Pool        *candidates.Pool
}

// Render fills the chunk template for one chunk
func (p Prompts) Render(chunk planner.Chunk, brief Brief) (string, error) {
	goal := brief.Request.Goal
	if goal == "" {
		goal = defaultGoal
	}
	minutes := brief.Request.SessionMinutes
	if minutes <= 0 {
		minutes = defaultSessionMinutes
	}
	level := brief.Constraints.Level
	if level.Rank() == 0 {
		level = models.LevelBeginner
	}
	var catalog []models.Exercise
	if brief.Pool != nil {
		catalog = brief.Pool.Exercises
	}

	data := map[string]any{
		"Instruction":     chunk.Instruction(brief.Request.Weeks),
		"TotalWeeks":      brief.Request.Weeks,
		"StartWeek":       chunk.StartWeek,
		"EndWeek":         chunk.EndWeek,
		"SessionsPerWeek": brief.Request.SessionsPerWeek,
		"SessionMinutes":  minutes,
		"Goal":            goal,
		"Level":           string(level),
		"Equipment":       brief.Constraints.Equipment,
		"Exclusions":      brief.Constraints.Exclusions,
		"Aversions":       brief.Constraints.Aversions,
		"Catalog":         catalog,
	}

	prompt, err := util.RenderTemplate(p.Chunk, data)
	if err != nil {
		return "", fmt.Errorf("render chunk %d prompt: %w", chunk.Index, err)
	}
	return prompt, nil
}
