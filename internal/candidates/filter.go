// Package candidates narrows an exercise catalog down to the pool a program may use.
package candidates

import (
	"log/slog"

	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/pkg/models"
)

// DefaultMinimumPerSession is the default number of pool exercises required per weekly session
const DefaultMinimumPerSession = 4

// Stage names used in logs and metrics
const (
	StageEquipment = "equipment"
	StageLevel     = "level"
	StageConflict  = "conflict"
	StageAversion  = "aversion"
)

// FilterStats reconstructs the funnel: TotalAvailable == Rejected() + Final
type FilterStats struct {
	TotalAvailable      int `json:"total_available"`
	RejectedByEquipment int `json:"rejected_by_equipment"`
	RejectedByLevel     int `json:"rejected_by_level"`
	RejectedByConflict  int `json:"rejected_by_conflict"`
	RejectedByAversion  int `json:"rejected_by_aversion"`
	Final               int `json:"final"`
}

// Rejected returns the number of exercises removed across all stages
func (s FilterStats) Rejected() int {
	return s.RejectedByEquipment + s.RejectedByLevel + s.RejectedByConflict + s.RejectedByAversion
}

// Reconciles reports whether the stats exactly account for every catalog item
func (s FilterStats) Reconciles() bool {
	return s.TotalAvailable == s.Rejected()+s.Final
}

// ByStage returns the rejection counts keyed by stage name
func (s FilterStats) ByStage() map[string]int {
	return map[string]int{
		StageEquipment: s.RejectedByEquipment,
		StageLevel:     s.RejectedByLevel,
		StageConflict:  s.RejectedByConflict,
		StageAversion:  s.RejectedByAversion,
	}
}

// Pool is the filtered, ordered set of eligible exercises
type Pool struct {
	Exercises []models.Exercise
	Stats     FilterStats
	byID      map[string]int
}

func newPool(exercises []models.Exercise, stats FilterStats) *Pool {
	byID := make(map[string]int, len(exercises))
	for i, e := range exercises {
		byID[e.ID] = i
	}
	return &Pool{Exercises: exercises, Stats: stats, byID: byID}
}

// Len returns the pool size
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Exercises)
}

// Contains reports whether id is in the pool
func (p *Pool) Contains(id string) bool {
	if p == nil {
		return false
	}
	_, ok := p.byID[id]
	return ok
}

// Lookup returns the pool exercise with the given id
func (p *Pool) Lookup(id string) (models.Exercise, bool) {
	if p == nil {
		return models.Exercise{}, false
	}
	i, ok := p.byID[id]
	if !ok {
		return models.Exercise{}, false
	}
	return p.Exercises[i], true
}

// Options configures a Filter
type Options struct {
	// MinimumPerSession multiplied by sessions per week gives the smallest viable pool
	MinimumPerSession int
	// Matcher builds exclusion and aversion rules; nil means Substring
	Matcher Matcher
}

// Filter is a four-stage funnel over the catalog
type Filter struct {
	opts   Options
	logger *slog.Logger
}

// New creates a filter
func New(opts Options, logger *slog.Logger) *Filter {
	if opts.MinimumPerSession <= 0 {
		opts.MinimumPerSession = DefaultMinimumPerSession
	}
	if opts.Matcher == nil {
		opts.Matcher = Substring
	}
	return &Filter{opts: opts, logger: logger.With("component", "candidate_filter")}
}

// Apply runs the funnel without enforcing a minimum pool size
func (f *Filter) Apply(catalog []models.Exercise, c models.Constraints) *Pool {
	stats := FilterStats{TotalAvailable: len(catalog)}
	survivors := make([]models.Exercise, 0, len(catalog))

	allowed := newEquipmentSet(c.Equipment)
	for _, e := range catalog {
		if isBodyweight(e.Equipment) || allowed.allows(e.Equipment) {
			survivors = append(survivors, e)
			continue
		}
		stats.RejectedByEquipment++
	}

	ceiling := c.Level.Rank()
	if ceiling == 0 {
		ceiling = models.LevelBeginner.Rank()
	}
	survivors = keep(survivors, &stats.RejectedByLevel, func(e models.Exercise) bool {
		rank := e.Difficulty.Rank()
		if rank == 0 {
			rank = models.LevelBeginner.Rank()
		}
		return rank <= ceiling
	})

	if rules := buildRules(c.Exclusions, ScopeConflict, f.opts.Matcher); len(rules) > 0 {
		survivors = keep(survivors, &stats.RejectedByConflict, func(e models.Exercise) bool {
			if r, hit := anyMatch(rules, TagsFor(e)); hit {
				f.logger.Debug("Excluded exercise for conflict", "exercise_id", e.ID, "rule", r.String())
				return false
			}
			return true
		})
	}

	if rules := buildRules(c.Aversions, ScopeAversion, f.opts.Matcher); len(rules) > 0 {
		survivors = keep(survivors, &stats.RejectedByAversion, func(e models.Exercise) bool {
			_, hit := anyMatch(rules, TagsFor(e))
			return !hit
		})
	}

	stats.Final = len(survivors)
	return newPool(survivors, stats)
}

// Build runs the funnel and fails fast when the pool cannot support sessionsPerWeek
func (f *Filter) Build(catalog []models.Exercise, c models.Constraints, sessionsPerWeek int) (*Pool, error) {
	pool := f.Apply(catalog, c)

	f.logger.Info("Candidate filter complete",
		"total_available", pool.Stats.TotalAvailable,
		"rejected_equipment", pool.Stats.RejectedByEquipment,
		"rejected_level", pool.Stats.RejectedByLevel,
		"rejected_conflict", pool.Stats.RejectedByConflict,
		"rejected_aversion", pool.Stats.RejectedByAversion,
		"final", pool.Stats.Final)

	need := sessionsPerWeek * f.opts.MinimumPerSession
	if pool.Len() < need {
		return pool, failure.InsufficientCandidates(pool.Len(), need)
	}
	return pool, nil
}

func keep(in []models.Exercise, rejected *int, pred func(models.Exercise) bool) []models.Exercise {
	out := in[:0]
	for _, e := range in {
		if pred(e) {
			out = append(out, e)
			continue
		}
		*rejected++
	}
	return out
}
