package assembler

import (
	"strings"

	"github.com/lamim/programforge/internal/candidates"
	"github.com/lamim/programforge/pkg/models"
)

// summarize counts prescriptions by movement pattern and category
func summarize(weeks []models.Week, pool *candidates.Pool) models.Summary {
	s := models.Summary{
		MovementBalance: make(map[string]int),
		CategoryCounts:  make(map[string]int),
	}
	for _, w := range weeks {
		for _, session := range w.Sessions {
			for _, p := range session.Exercises {
				s.TotalPrescriptions++
				e, ok := pool.Lookup(p.ExerciseID)
				if !ok {
					continue
				}
				s.MovementBalance[label(e.Movement)]++
				s.CategoryCounts[label(e.Category)]++
			}
		}
	}
	return s
}

func label(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "other"
	}
	return s
}
