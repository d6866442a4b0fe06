package orchestrator

import (
	"time"

	"github.com/lamim/programforge/internal/config"
)

// Options controls deadlines, retries and request limits for a Controller
type Options struct {
	BaseSetup            time.Duration
	PerWeek              time.Duration
	PlatformMax          time.Duration
	TerminalWriteTimeout time.Duration
	WorkerGrace          time.Duration
	TruncationRetries    int
	ContextWindow        int
	ContextSample        int
	MaxWeeks             int
	MaxSessionsPerWeek   int
	MaxConcurrentJobs    int
	Provider             string
	Model                string
}

// OptionsFromConfig derives controller options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseSetup:            cfg.Pipeline.BaseSetup(),
		PerWeek:              cfg.Pipeline.PerWeek(),
		PlatformMax:          cfg.Pipeline.PlatformMax(),
		TerminalWriteTimeout: cfg.Pipeline.TerminalWriteTimeout(),
		WorkerGrace:          cfg.Pipeline.WorkerGrace(),
		TruncationRetries:    cfg.Pipeline.TruncationRetryLimit(),
		ContextWindow:        cfg.Planner.ContextWindow,
		ContextSample:        cfg.Planner.ContextSample,
		MaxWeeks:             cfg.Pipeline.MaxWeeks,
		MaxSessionsPerWeek:   cfg.Pipeline.MaxSessionsPerWeek,
		MaxConcurrentJobs:    cfg.Server.MaxConcurrentJobs,
		Provider:             config.GetProviderName(cfg.Model.BaseURL),
		Model:                cfg.Model.ModelName,
	}
}

func (o Options) withDefaults() Options {
	if o.BaseSetup <= 0 {
		o.BaseSetup = 20 * time.Second
	}
	if o.PerWeek <= 0 {
		o.PerWeek = 25 * time.Second
	}
	if o.PlatformMax <= 0 {
		o.PlatformMax = 300 * time.Second
	}
	if o.TerminalWriteTimeout <= 0 {
		o.TerminalWriteTimeout = 2 * time.Second
	}
	if o.WorkerGrace <= 0 {
		o.WorkerGrace = 2 * time.Second
	}
	if o.TruncationRetries < 0 {
		o.TruncationRetries = 0
	}
	if o.MaxWeeks <= 0 {
		o.MaxWeeks = config.MaxRequestWeeks
	}
	if o.MaxSessionsPerWeek <= 0 {
		o.MaxSessionsPerWeek = config.MaxRequestSessions
	}
	if o.MaxConcurrentJobs <= 0 {
		o.MaxConcurrentJobs = 8
	}
	return o
}

// Budget returns the time allowance for a program of the given length and
// whether that allowance had to be clipped to the platform maximum.
func (o Options) Budget(weeks int) (time.Duration, bool) {
	need := o.BaseSetup + time.Duration(weeks)*o.PerWeek
	if need > o.PlatformMax {
		return o.PlatformMax, true
	}
	return need, false
}
