package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/lamim/programforge/internal/candidates"
	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testBrief() Brief {
	catalog := []models.Exercise{
		{ID: "pushup", Name: "Push-Up", Category: "strength", Equipment: "bodyweight", Difficulty: models.LevelBeginner, Movement: "push"},
		{ID: "squat", Name: "Air Squat", Category: "strength", Equipment: "bodyweight", Difficulty: models.LevelBeginner, Movement: "squat"},
	}
	pool := candidates.New(candidates.Options{}, testLogger()).Apply(catalog, models.Constraints{})
	return Brief{
		Request:     models.ProgramRequest{Weeks: 4, SessionsPerWeek: 2, Goal: "strength"},
		Constraints: models.Constraints{Exclusions: []string{"knee"}},
		Pool:        pool,
	}
}

func testPrompts() Prompts {
	return Prompts{System: config.GetDefaultSystemPrompt(), Chunk: config.GetDefaultChunkTemplate()}
}

func twoWeeks(start int) string {
	return fmt.Sprintf(`{"program_name": "Base", "weeks": [
		{"week": %d, "focus": "a", "sessions": [{"day": 1, "name": "A", "exercises": [{"exercise_id": "pushup", "sets": 3, "reps": "10"}]}]},
		{"week": %d, "focus": "b", "sessions": [{"day": 1, "name": "B", "exercises": [{"exercise_id": "squat", "sets": 3, "reps": "12"}]}]}
	]}`, start, start+1)
}

func respond(text, finish string) CompletionFunc {
	return func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		return &Completion{Text: text, FinishReason: finish, InputTokens: 1000, OutputTokens: 500, Model: "m"}, nil
	}
}

func TestExecute_Classification(t *testing.T) {
	chunk := planner.Chunk{Index: 1, StartWeek: 3, EndWeek: 4, TokenBudget: 2048}

	tests := []struct {
		name      string
		text      string
		finish    string
		wantKind  failure.Kind
		wantWeeks int
	}{
		{"clean json", twoWeeks(3), "stop", "", 2},
		{"fenced json", "```json\n" + twoWeeks(3) + "\n```", "stop", "", 2},
		{"prose around json", "Here is your plan:\n" + twoWeeks(3) + "\nEnjoy!", "stop", "", 2},
		{"reasoning before json", "<think>week 3 should build volume</think>" + twoWeeks(3), "stop", "", 2},
		{"truncated and unparseable", `{"program_name": "Base", "weeks": [{"week": 3, "sessions": [`, "length", failure.KindTruncatedOutput, 0},
		{"max_tokens reason", `{"weeks": [`, "max_tokens", failure.KindTruncatedOutput, 0},
		{"garbage with stop", "I'm sorry, I can't produce that.", "stop", failure.KindMalformedOutput, 0},
		{"broken json with stop", `{"weeks": [}`, "stop", failure.KindMalformedOutput, 0},
		{"empty weeks", `{"program_name": "x", "weeks": []}`, "stop", failure.KindMalformedOutput, 0},
		{"truncated but complete", twoWeeks(3), "length", "", 2},
		{"truncated with weeks past the chunk", twoWeeks(4), "length", failure.KindTruncatedOutput, 0},
		{"truncated and partial", `{"weeks": [{"week": 3, "sessions": [{"day": 1, "exercises": [{"exercise_id": "pushup"}]}]}]}`, "length", failure.KindTruncatedOutput, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(respond(tt.text, tt.finish), testPrompts(), Pricing{}, nil, testLogger())
			result, err := e.Execute(context.Background(), chunk, testBrief(), &UsageMeter{})

			if tt.wantKind != "" {
				if !failure.Is(err, tt.wantKind) {
					t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Draft.Weeks) != tt.wantWeeks {
				t.Errorf("got %d weeks, want %d", len(result.Draft.Weeks), tt.wantWeeks)
			}
			if result.Truncated != IsTruncated(tt.finish) {
				t.Errorf("Truncated = %v", result.Truncated)
			}
		})
	}
}

func TestExecute_ProviderErrorIsVerbatim(t *testing.T) {
	providerErr := errors.New("API error (status 429): Rate limit reached for requests")
	svc := CompletionFunc(func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		return nil, providerErr
	})

	meter := &UsageMeter{}
	_, err := NewExecutor(svc, testPrompts(), Pricing{}, nil, testLogger()).
		Execute(context.Background(), planner.Chunk{StartWeek: 1, EndWeek: 2}, testBrief(), meter)

	if !failure.Is(err, failure.KindProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if failure.Message(err) != providerErr.Error() {
		t.Errorf("message = %q, want provider text verbatim", failure.Message(err))
	}
	if !errors.Is(err, providerErr) {
		t.Error("provider error should stay in the chain")
	}
	if meter.Total().Calls != 0 {
		t.Error("a failed transport call has no usage to record")
	}
}

func TestExecute_CancelledContextIsNotClassified(t *testing.T) {
	svc := CompletionFunc(func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(svc, testPrompts(), Pricing{}, nil, testLogger()).
		Execute(ctx, planner.Chunk{StartWeek: 1, EndWeek: 1}, testBrief(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if failure.Is(err, failure.KindProviderError) {
		t.Error("cancellation must not be reported as a provider error")
	}
}

func TestExecute_UsageAccumulatesAcrossChunks(t *testing.T) {
	var budgets []int
	svc := CompletionFunc(func(ctx context.Context, req CompletionRequest) (*Completion, error) {
		budgets = append(budgets, req.MaxTokens)
		start := 1 + 2*(len(budgets)-1)
		text := twoWeeks(start)
		if len(budgets) == 2 {
			text = "not json"
		}
		return &Completion{Text: text, FinishReason: "stop", InputTokens: 1000, OutputTokens: 2000}, nil
	})

	pricing := Pricing{InputPerMillion: 0.5, OutputPerMillion: 1.5}
	e := NewExecutor(svc, testPrompts(), pricing, nil, testLogger())
	meter := &UsageMeter{}

	chunks, _ := planner.New(planner.Options{}).Plan(6, 2)
	for _, c := range chunks {
		_, _ = e.Execute(context.Background(), c, testBrief(), meter)
	}

	total := meter.Total()
	if total.Calls != 3 || total.InputTokens != 3000 || total.OutputTokens != 6000 {
		t.Errorf("usage = %+v, want 3 calls including the rejected one", total)
	}
	wantCost := 3 * (1000*0.5 + 2000*1.5) / 1e6
	if math.Abs(total.CostUSD-wantCost) > 1e-12 {
		t.Errorf("cost = %v, want %v", total.CostUSD, wantCost)
	}
	for i, b := range budgets {
		if b != chunks[i].TokenBudget {
			t.Errorf("call %d used budget %d, want %d", i, b, chunks[i].TokenBudget)
		}
	}
}

func TestPrompts_Render(t *testing.T) {
	chunk := planner.Chunk{
		Index: 1, StartWeek: 3, EndWeek: 4,
		Context: &planner.CarriedContext{Weeks: []planner.WeekDigest{{Week: 2, Focus: "volume", Exercises: []string{"Push-Up"}}}},
	}

	prompt, err := testPrompts().Render(chunk, testBrief())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"weeks 3 through 4", "pushup | Push-Up", "squat | Air Squat", "Restrictions: knee", "Goal: strength", "Minutes per session: 45", "Level: beginner"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPrompts_RenderRejectsUnknownKeys(t *testing.T) {
	p := Prompts{Chunk: "{{.NotAField}}"}
	if _, err := p.Render(planner.Chunk{StartWeek: 1, EndWeek: 1}, testBrief()); err == nil {
		t.Error("expected an error for a template referencing an unknown key")
	}
}

func TestParseDraft_BareArray(t *testing.T) {
	draft, err := ParseDraft(`[{"week": 1, "sessions": []}, {"week": 2, "sessions": []}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(draft.Weeks) != 2 || draft.Weeks[1].Number != 2 {
		t.Errorf("unexpected draft %+v", draft)
	}
}

func TestIsTruncated(t *testing.T) {
	for reason, want := range map[string]bool{"length": true, "MAX_TOKENS": true, "stop": false, "": false, "content_filter": false} {
		if got := IsTruncated(reason); got != want {
			t.Errorf("IsTruncated(%q) = %v, want %v", reason, got, want)
		}
	}
}
