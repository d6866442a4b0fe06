// Package assembler merges chunk outputs into a single validated program.
package assembler

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lamim/programforge/internal/candidates"
	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/internal/generation"
	"github.com/lamim/programforge/internal/metrics"
	"github.com/lamim/programforge/pkg/models"
)

// maxReportedRefs caps how many dangling ids end up in an error message
const maxReportedRefs = 5

// Input is everything needed to assemble one job's artifact
type Input struct {
	JobID          string
	RequestedWeeks int
	Partials       []*generation.PartialResult
	Pool           *candidates.Pool
	Usage          models.Usage
	Elapsed        time.Duration
}

// Assembler merges, deduplicates and validates partial results
type Assembler struct {
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an assembler. collector may be nil.
func New(collector *metrics.Collector, logger *slog.Logger) *Assembler {
	return &Assembler{
		metrics: collector,
		logger:  logger.With("component", "assembler"),
		now:     time.Now,
	}
}

// Merge concatenates weeks in arrival order, keeps the first occurrence of each
// week number and sorts ascending. It returns the number of discarded duplicates.
func Merge(partials []*generation.PartialResult) ([]models.Week, int) {
	seen := make(map[int]bool)
	var weeks []models.Week
	discarded := 0
	for _, p := range partials {
		if p == nil || p.Draft == nil {
			continue
		}
		for _, w := range p.Draft.Weeks {
			if seen[w.Number] {
				discarded++
				continue
			}
			seen[w.Number] = true
			weeks = append(weeks, w)
		}
	}
	slices.SortStableFunc(weeks, func(a, b models.Week) int { return cmp.Compare(a.Number, b.Number) })
	return weeks, discarded
}

// Assemble produces the artifact or a ValidationError. Nothing is persisted here.
func (a *Assembler) Assemble(in Input) (*models.Artifact, error) {
	weeks, discarded := Merge(in.Partials)
	if discarded > 0 {
		a.logger.Info("Discarded duplicate weeks", "job_id", in.JobID, "count", discarded)
		a.metrics.RecordDuplicatesDiscarded(discarded)
	}

	if err := checkReferences(weeks, in.Pool); err != nil {
		return nil, err
	}

	numberSessions(weeks)
	name, description := programHeader(in.Partials)
	if err := checkStructure(name, weeks, in.RequestedWeeks); err != nil {
		return nil, err
	}

	fillNames(weeks, in.Pool)

	summary := summarize(weeks, in.Pool)
	summary.InputTokens = in.Usage.InputTokens
	summary.OutputTokens = in.Usage.OutputTokens
	summary.EstimatedCostUSD = in.Usage.CostUSD
	summary.Latency = in.Elapsed
	summary.Chunks = len(in.Partials)
	summary.DuplicatesDiscarded = discarded

	return &models.Artifact{
		JobID: in.JobID,
		Program: models.Program{
			Name:        name,
			Description: description,
			Weeks:       weeks,
		},
		Summary:   summary,
		CreatedAt: a.now().UTC(),
	}, nil
}

// programHeader takes the first non-empty name and description in arrival order
func programHeader(partials []*generation.PartialResult) (string, string) {
	var name, description string
	for _, p := range partials {
		if p == nil || p.Draft == nil {
			continue
		}
		if name == "" {
			name = strings.TrimSpace(p.Draft.Name)
		}
		if description == "" {
			description = strings.TrimSpace(p.Draft.Description)
		}
	}
	return name, description
}

func checkReferences(weeks []models.Week, pool *candidates.Pool) error {
	var dangling []string
	total := 0
	for _, w := range weeks {
		for _, s := range w.Sessions {
			for _, p := range s.Exercises {
				if pool.Contains(p.ExerciseID) {
					continue
				}
				total++
				if len(dangling) < maxReportedRefs {
					dangling = append(dangling, fmt.Sprintf("%q (week %d, day %d)", p.ExerciseID, w.Number, s.Day))
				}
			}
		}
	}
	if total == 0 {
		return nil
	}
	return failure.Validation("%d prescribed exercises are not in the candidate pool: %s",
		total, strings.Join(dangling, ", "))
}

func checkStructure(name string, weeks []models.Week, requested int) error {
	if name == "" {
		return failure.Validation("program name is missing")
	}
	if len(weeks) == 0 {
		return failure.Validation("program has no weeks")
	}

	present := make(map[int]bool, len(weeks))
	for _, w := range weeks {
		if w.Number < 1 || w.Number > requested {
			return failure.Validation("week %d is outside the requested range 1-%d", w.Number, requested)
		}
		present[w.Number] = true
		if len(w.Sessions) == 0 {
			return failure.Validation("week %d has no sessions", w.Number)
		}
		days := make(map[int]bool, len(w.Sessions))
		for i, s := range w.Sessions {
			if len(s.Exercises) == 0 {
				return failure.Validation("week %d session %d has no exercises", w.Number, i+1)
			}
			if s.Day < 1 {
				return failure.Validation("week %d session %d has no valid day (got %d)", w.Number, i+1, s.Day)
			}
			if days[s.Day] {
				return failure.Validation("week %d has more than one session on day %d", w.Number, s.Day)
			}
			days[s.Day] = true
		}
	}

	var missing []int
	for n := 1; n <= requested; n++ {
		if !present[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return failure.Validation("program is missing weeks %v", missing)
	}
	return nil
}

// numberSessions assigns days 1..n in order to weeks whose sessions carry no
// day at all. Partially numbered weeks are left for checkStructure to judge.
func numberSessions(weeks []models.Week) {
	for wi := range weeks {
		sessions := weeks[wi].Sessions
		numbered := false
		for _, s := range sessions {
			if s.Day != 0 {
				numbered = true
				break
			}
		}
		if numbered {
			continue
		}
		for si := range sessions {
			sessions[si].Day = si + 1
		}
	}
}

// fillNames replaces empty or drifting prescription names with the catalog name
func fillNames(weeks []models.Week, pool *candidates.Pool) {
	for wi := range weeks {
		for si := range weeks[wi].Sessions {
			exercises := weeks[wi].Sessions[si].Exercises
			for pi := range exercises {
				if e, ok := pool.Lookup(exercises[pi].ExerciseID); ok {
					exercises[pi].Name = e.Name
				}
			}
		}
	}
}
