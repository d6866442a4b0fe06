package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/internal/metrics"
	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/internal/util"
	"github.com/lamim/programforge/pkg/models"
)

// PartialResult is the parsed output of one successful chunk
type PartialResult struct {
	ChunkIndex   int
	Draft        *models.ProgramDraft
	Usage        models.Usage
	FinishReason string
	// Truncated is set when the provider reported a length stop but the payload
	// still parsed and covered the whole chunk
	Truncated bool
}

// Executor performs exactly one completion call per Execute
type Executor struct {
	svc     CompletionService
	prompts Prompts
	pricing Pricing
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewExecutor creates an executor. collector may be nil.
func NewExecutor(svc CompletionService, prompts Prompts, pricing Pricing, collector *metrics.Collector, logger *slog.Logger) *Executor {
	return &Executor{
		svc:     svc,
		prompts: prompts,
		pricing: pricing,
		metrics: collector,
		logger:  logger.With("component", "generation_executor"),
	}
}

// Execute generates one chunk. Usage is recorded into meter whether or not the
// output turns out to be usable. Errors are classified with the failure kinds;
// a cancelled ctx is returned unclassified for the caller to interpret.
func (e *Executor) Execute(ctx context.Context, chunk planner.Chunk, brief Brief, meter *UsageMeter) (*PartialResult, error) {
	prompt, err := e.prompts.Render(chunk, brief)
	if err != nil {
		return nil, failure.Wrap(failure.KindInternal, err, "could not build the prompt for chunk %d", chunk.Index)
	}

	log := e.logger.With("chunk", chunk.Index, "start_week", chunk.StartWeek, "end_week", chunk.EndWeek)
	log.Debug("Requesting chunk", "token_budget", chunk.TokenBudget, "prompt_chars", len(prompt))

	start := time.Now()
	resp, err := e.svc.Complete(ctx, CompletionRequest{
		System:    e.prompts.System,
		Prompt:    prompt,
		MaxTokens: chunk.TokenBudget,
	})
	latency := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.metrics.RecordChunk("cancelled", latency)
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, ctxErr)
		}
		e.metrics.RecordChunk(string(failure.KindProviderError), latency)
		log.Error("Completion call failed", "error", err, "latency", latency)
		return nil, failure.ProviderError(err)
	}

	usage := models.Usage{
		Calls:        1,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      e.pricing.Cost(resp.InputTokens, resp.OutputTokens),
		Latency:      latency,
	}
	if meter != nil {
		meter.Add(usage)
	}
	e.metrics.RecordUsage(usage.InputTokens, usage.OutputTokens, usage.CostUSD)

	if util.ContainsThinkTags(resp.Text) {
		log.Debug("Stripping reasoning block from response")
	}

	result, err := classify(chunk, resp)
	if err != nil {
		e.metrics.RecordChunk(string(failure.KindOf(err)), latency)
		log.Warn("Chunk output rejected",
			"kind", failure.KindOf(err),
			"finish_reason", resp.FinishReason,
			"output_tokens", resp.OutputTokens,
			"preview", util.TruncateString(resp.Text, 200),
			"error", err)
		return nil, err
	}
	result.Usage = usage

	e.metrics.RecordChunk("ok", latency)
	log.Info("Chunk generated",
		"weeks", len(result.Draft.Weeks),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"finish_reason", resp.FinishReason,
		"latency", latency)
	return result, nil
}

// classify parses a response and maps failures onto TruncatedOutput or MalformedOutput
func classify(chunk planner.Chunk, resp *Completion) (*PartialResult, error) {
	truncated := IsTruncated(resp.FinishReason)

	draft, err := ParseDraft(resp.Text)
	if err != nil {
		if truncated {
			return nil, failure.TruncatedOutput(chunk.Index, err)
		}
		return nil, failure.MalformedOutput(chunk.Index, err)
	}

	if len(draft.Weeks) == 0 {
		if truncated {
			return nil, failure.TruncatedOutput(chunk.Index, fmt.Errorf("payload contains no weeks"))
		}
		return nil, failure.MalformedOutput(chunk.Index, fmt.Errorf("payload contains no weeks"))
	}

	// A length stop that still parsed may have lost trailing weeks
	if truncated {
		if missing := missingWeeks(draft, chunk); len(missing) > 0 {
			return nil, failure.TruncatedOutput(chunk.Index, fmt.Errorf("payload is missing weeks %v", missing))
		}
	}

	return &PartialResult{
		ChunkIndex:   chunk.Index,
		Draft:        draft,
		FinishReason: resp.FinishReason,
		Truncated:    truncated,
	}, nil
}
