package generation

import (
	"sync"

	"github.com/lamim/programforge/pkg/models"
)

// Pricing converts token counts into an estimated cost
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Cost returns the estimated USD cost of a call
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputPerMillion/1e6 + float64(outputTokens)*p.OutputPerMillion/1e6
}

// UsageMeter accumulates usage across every call made for one job,
// including calls whose output was later rejected
type UsageMeter struct {
	mu    sync.Mutex
	total models.Usage
}

// Add records one call
func (m *UsageMeter) Add(u models.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total.Add(u)
}

// Total returns the accumulated usage
func (m *UsageMeter) Total() models.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}
