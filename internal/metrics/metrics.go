package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "programforge_api_request_duration_seconds",
			Help:    "Completion request duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"model", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "programforge_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "programforge_tokens_total",
			Help: "Tokens consumed by direction",
		},
		[]string{"direction"}, // "input" or "output"
	)

	estimatedCost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "programforge_estimated_cost_usd_total",
			Help: "Estimated provider spend in USD",
		},
	)

	// Pipeline metrics
	chunkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "programforge_chunk_duration_seconds",
			Help:    "Generation chunk duration by outcome",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~500s
		},
		[]string{"outcome"}, // "ok" or a failure kind
	)

	jobOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "programforge_jobs_total",
			Help: "Finished generation jobs by status and failure kind",
		},
		[]string{"status", "kind"},
	)

	activeJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "programforge_active_jobs",
			Help: "Generation jobs currently running",
		},
	)

	filterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "programforge_filter_rejections_total",
			Help: "Catalog items removed by the candidate filter, by stage",
		},
		[]string{"stage"},
	)

	duplicatesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "programforge_duplicate_weeks_discarded_total",
			Help: "Weeks discarded during assembly because an earlier chunk already produced them",
		},
	)

	auditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "programforge_audit_write_failures_total",
			Help: "Audit records that could not be persisted",
		},
	)
)

// Collector provides convenience methods for recording metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// RecordAPIRequest records a completion request duration
func (c *Collector) RecordAPIRequest(model string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	apiRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	if c == nil {
		return
	}
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordUsage records token counts and cost for one completion
func (c *Collector) RecordUsage(inputTokens, outputTokens int, costUSD float64) {
	if c == nil {
		return
	}
	tokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	tokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	if costUSD > 0 {
		estimatedCost.Add(costUSD)
	}
}

// RecordChunk records one chunk's duration by outcome
func (c *Collector) RecordChunk(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	chunkDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordJobOutcome counts a finished job
func (c *Collector) RecordJobOutcome(status, kind string) {
	if c == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	jobOutcomes.WithLabelValues(status, kind).Inc()
}

// JobStarted increments the active job gauge; call the returned func when the job ends
func (c *Collector) JobStarted() func() {
	if c == nil {
		return func() {}
	}
	activeJobs.Inc()
	return activeJobs.Dec
}

// RecordFilterRejections adds per-stage rejection counts
func (c *Collector) RecordFilterRejections(byStage map[string]int) {
	if c == nil {
		return
	}
	for stage, n := range byStage {
		if n > 0 {
			filterRejections.WithLabelValues(stage).Add(float64(n))
		}
	}
}

// RecordDuplicatesDiscarded counts weeks dropped by deduplication
func (c *Collector) RecordDuplicatesDiscarded(n int) {
	if c == nil || n <= 0 {
		return
	}
	duplicatesDiscarded.Add(float64(n))
	c.logger.Debug("Discarded duplicate weeks", "count", n)
}

// RecordAuditWriteFailure counts an audit record that could not be written
func (c *Collector) RecordAuditWriteFailure() {
	if c == nil {
		return
	}
	auditWriteFailures.Inc()
}
