// Package planner splits a program request into bounded generation chunks.
package planner

import "fmt"

const (
	// DefaultSmallProgramThreshold is the largest program generated in a single call
	DefaultSmallProgramThreshold = 3
	// DefaultChunkSize is the number of weeks per call for larger programs
	DefaultChunkSize = 2
	// DefaultFloorTokens is the smallest output budget given to any chunk
	DefaultFloorTokens = 2048
	// DefaultTokensPerSession estimates output tokens for one generated session
	DefaultTokensPerSession = 450
	// DefaultOverheadTokens covers program name, description and JSON framing
	DefaultOverheadTokens = 300
	// DefaultCeilingTokens is the provider's structured output ceiling
	DefaultCeilingTokens = 16384
)

// Options controls chunk sizing and token budgets
type Options struct {
	SmallProgramThreshold int
	ChunkSize             int
	// MaxWeeksPerChunk is a platform hint; zero means no hint
	MaxWeeksPerChunk int
	FloorTokens      int
	TokensPerSession int
	OverheadTokens   int
	CeilingTokens    int
}

// DefaultOptions returns the default planner options
func DefaultOptions() Options {
	return Options{
		SmallProgramThreshold: DefaultSmallProgramThreshold,
		ChunkSize:             DefaultChunkSize,
		FloorTokens:           DefaultFloorTokens,
		TokensPerSession:      DefaultTokensPerSession,
		OverheadTokens:        DefaultOverheadTokens,
		CeilingTokens:         DefaultCeilingTokens,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SmallProgramThreshold <= 0 {
		o.SmallProgramThreshold = d.SmallProgramThreshold
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.FloorTokens <= 0 {
		o.FloorTokens = d.FloorTokens
	}
	if o.TokensPerSession <= 0 {
		o.TokensPerSession = d.TokensPerSession
	}
	if o.OverheadTokens < 0 {
		o.OverheadTokens = 0
	}
	if o.CeilingTokens <= 0 {
		o.CeilingTokens = d.CeilingTokens
	}
	if o.FloorTokens > o.CeilingTokens {
		o.FloorTokens = o.CeilingTokens
	}
	return o
}

// Chunk is one bounded call to the completion service covering weeks StartWeek..EndWeek
type Chunk struct {
	Index       int
	StartWeek   int
	EndWeek     int
	TokenBudget int
	// Context is nil for the first chunk and set from assembled output for later ones
	Context *CarriedContext
}

// Weeks returns the number of weeks covered by the chunk
func (c Chunk) Weeks() int {
	return c.EndWeek - c.StartWeek + 1
}

// Covers reports whether week falls inside the chunk's range
func (c Chunk) Covers(week int) bool {
	return week >= c.StartWeek && week <= c.EndWeek
}

// Foundation reports whether this chunk opens the program
func (c Chunk) Foundation() bool {
	return c.Index == 0
}

// Planner produces chunk plans
type Planner struct {
	opts Options
}

// New creates a planner
func New(opts Options) *Planner {
	return &Planner{opts: opts.withDefaults()}
}

// Options returns the effective options
func (p *Planner) Options() Options {
	return p.opts
}

// ChunkSize returns the number of weeks per chunk used for a program of the given length
func (p *Planner) ChunkSize(weeks int) int {
	size := p.opts.ChunkSize
	if weeks <= p.opts.SmallProgramThreshold {
		size = weeks
	}
	if p.opts.MaxWeeksPerChunk > 0 && size > p.opts.MaxWeeksPerChunk {
		size = p.opts.MaxWeeksPerChunk
	}
	return size
}

// Plan splits [1, weeks] into contiguous chunks
func (p *Planner) Plan(weeks, sessionsPerWeek int) ([]Chunk, error) {
	if weeks < 1 {
		return nil, fmt.Errorf("weeks must be at least 1 (got %d)", weeks)
	}
	if sessionsPerWeek < 1 {
		return nil, fmt.Errorf("sessions per week must be at least 1 (got %d)", sessionsPerWeek)
	}

	size := p.ChunkSize(weeks)
	count := (weeks + size - 1) / size
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := i*size + 1
		end := min(start+size-1, weeks)
		chunks = append(chunks, Chunk{
			Index:       i,
			StartWeek:   start,
			EndWeek:     end,
			TokenBudget: p.TokenBudget(end-start+1, sessionsPerWeek),
		})
	}
	return chunks, nil
}

// TokenBudget sizes the output budget for a chunk
func (p *Planner) TokenBudget(weeks, sessionsPerWeek int) int {
	estimated := p.opts.OverheadTokens + weeks*sessionsPerWeek*p.opts.TokensPerSession
	return min(max(p.opts.FloorTokens, estimated), p.opts.CeilingTokens)
}

// Enlarge grows a budget by half for a retry, capped at the ceiling
func (p *Planner) Enlarge(budget int) int {
	return min(budget+budget/2, p.opts.CeilingTokens)
}

// Validate checks that chunks are contiguous, non-overlapping and cover [1, weeks]
func Validate(chunks []Chunk, weeks int) error {
	if len(chunks) == 0 {
		return fmt.Errorf("plan has no chunks")
	}
	next := 1
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.StartWeek != next {
			return fmt.Errorf("chunk %d starts at week %d, expected %d", i, c.StartWeek, next)
		}
		if c.EndWeek < c.StartWeek {
			return fmt.Errorf("chunk %d ends at week %d before it starts at %d", i, c.EndWeek, c.StartWeek)
		}
		next = c.EndWeek + 1
	}
	if next != weeks+1 {
		return fmt.Errorf("plan covers weeks 1-%d, expected 1-%d", next-1, weeks)
	}
	return nil
}
