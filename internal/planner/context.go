package planner

import (
	"fmt"
	"strings"

	"github.com/lamim/programforge/pkg/models"
)

const (
	// DefaultContextWindow is how many trailing weeks are summarised for the next chunk
	DefaultContextWindow = 2
	// DefaultContextSample is how many exercise names are sampled per summarised week
	DefaultContextSample = 3
)

// WeekDigest is a bounded summary of one already-generated week
type WeekDigest struct {
	Week      int      `json:"week"`
	Focus     string   `json:"focus"`
	Exercises []string `json:"exercises"`
}

// CarriedContext is what a later chunk sees of the program generated so far
type CarriedContext struct {
	Weeks []WeekDigest `json:"weeks"`
}

// Empty reports whether there is nothing to carry
func (c *CarriedContext) Empty() bool {
	return c == nil || len(c.Weeks) == 0
}

// BuildCarriedContext summarises the trailing window of assembled weeks.
// Weeks are expected in ascending order; only the last window are inspected.
func BuildCarriedContext(assembled []models.Week, window, sample int) *CarriedContext {
	if window <= 0 {
		window = DefaultContextWindow
	}
	if sample <= 0 {
		sample = DefaultContextSample
	}
	if len(assembled) == 0 {
		return nil
	}

	tail := assembled[max(0, len(assembled)-window):]
	ctx := &CarriedContext{Weeks: make([]WeekDigest, 0, len(tail))}
	for _, w := range tail {
		ctx.Weeks = append(ctx.Weeks, WeekDigest{
			Week:      w.Number,
			Focus:     w.Focus,
			Exercises: sampleExercises(w, sample),
		})
	}
	return ctx
}

// sampleExercises takes distinct names across the week's sessions, first one from each
// session before going deeper, so a sample is not dominated by day one.
func sampleExercises(w models.Week, n int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, n)
	for depth := 0; len(out) < n; depth++ {
		progressed := false
		for _, s := range w.Sessions {
			if depth >= len(s.Exercises) {
				continue
			}
			progressed = true
			name := s.Exercises[depth].Name
			if name == "" {
				name = s.Exercises[depth].ExerciseID
			}
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
			if len(out) == n {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

// Instruction renders the continuity instruction that accompanies a chunk's prompt
func (c Chunk) Instruction(totalWeeks int) string {
	if c.Foundation() || c.Context.Empty() {
		return fmt.Sprintf(
			"This is the foundation phase of a %d-week program. Generate weeks %d through %d, "+
				"establishing baseline movement patterns and loads that later weeks will build on.",
			totalWeeks, c.StartWeek, c.EndWeek)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Continue a %d-week program. Generate weeks %d through %d.\n", totalWeeks, c.StartWeek, c.EndWeek)
	b.WriteString("Previously generated weeks:\n")
	for _, d := range c.Context.Weeks {
		fmt.Fprintf(&b, "- Week %d", d.Week)
		if d.Focus != "" {
			fmt.Fprintf(&b, " (%s)", d.Focus)
		}
		if len(d.Exercises) > 0 {
			fmt.Fprintf(&b, ": %s", strings.Join(d.Exercises, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("Do not repeat the listed sessions verbatim. Vary exercise selection and show measurable " +
		"progression over the previous weeks (added sets, reps, load or reduced rest).")
	return b.String()
}
