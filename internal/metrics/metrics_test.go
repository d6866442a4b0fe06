package metrics

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RecordsCounters(t *testing.T) {
	c := NewCollector(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))

	beforeIn := testutil.ToFloat64(tokensTotal.WithLabelValues("input"))
	c.RecordUsage(120, 40, 0.002)
	if got := testutil.ToFloat64(tokensTotal.WithLabelValues("input")) - beforeIn; got != 120 {
		t.Errorf("input tokens delta = %v, want 120", got)
	}

	beforeConflict := testutil.ToFloat64(filterRejections.WithLabelValues("conflict"))
	c.RecordFilterRejections(map[string]int{"conflict": 3, "aversion": 0})
	if got := testutil.ToFloat64(filterRejections.WithLabelValues("conflict")) - beforeConflict; got != 3 {
		t.Errorf("conflict rejections delta = %v, want 3", got)
	}

	beforeFailed := testutil.ToFloat64(jobOutcomes.WithLabelValues("failed", "deadline_exceeded"))
	c.RecordJobOutcome("failed", "deadline_exceeded")
	if got := testutil.ToFloat64(jobOutcomes.WithLabelValues("failed", "deadline_exceeded")) - beforeFailed; got != 1 {
		t.Errorf("job outcome delta = %v, want 1", got)
	}

	done := c.JobStarted()
	if got := testutil.ToFloat64(activeJobs); got < 1 {
		t.Errorf("active jobs = %v while a job runs", got)
	}
	done()

	c.RecordChunk("ok", 2*time.Second)
	c.RecordAPIRequest("test-model", time.Second, true)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.RecordUsage(1, 1, 1)
	c.RecordChunk("ok", time.Second)
	c.RecordJobOutcome("completed", "")
	c.RecordDuplicatesDiscarded(2)
	c.RecordAuditWriteFailure()
	c.JobStarted()()
}
