package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/generation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testModel(url string) config.ModelConfig {
	return config.ModelConfig{
		BaseURL:            url,
		ModelName:          "test-model",
		Temperature:        0.7,
		TopP:               1.0,
		MaxOutputTokens:    4096,
		RateLimitPerMinute: 6000,
		MaxRetries:         3,
		HTTPTimeoutSeconds: 5,
	}
}

const okBody = `{
	"id": "test-123",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "{\"weeks\": []}"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestChatCompletion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header 'Bearer test-key', got '%s'", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req ChatCompletionRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		if req.MaxTokens != 1500 {
			t.Errorf("MaxTokens = %d, want per-call override 1500", req.MaxTokens)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(okBody))
	}))
	defer server.Close()

	client := NewClient(testLogger(), nil)
	resp, err := client.ChatCompletion(context.Background(), testModel(server.URL+"/"), "test-key",
		[]Message{{Role: "user", Content: "Test message"}}, 1500)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.Choices[0].FinishReason)
	}
}

func TestChatCompletion_BudgetCappedAtCeiling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 4096 {
			t.Errorf("MaxTokens = %d, want ceiling 4096", req.MaxTokens)
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer server.Close()

	client := NewClient(testLogger(), nil)
	if _, err := client.ChatCompletion(context.Background(), testModel(server.URL), "", []Message{{Role: "user", Content: "x"}}, 99999); err != nil {
		t.Fatal(err)
	}
}

func TestChatCompletion_RetryOn500(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "Server error"}}`))
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer server.Close()

	client := NewClient(testLogger(), nil)
	client.baseRetryDelay = time.Millisecond

	if _, err := client.ChatCompletion(context.Background(), testModel(server.URL), "k", []Message{{Role: "user", Content: "x"}}, 0); err != nil {
		t.Fatalf("Expected success after retries, got error: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts (2 retries), got %d", got)
	}
}

func TestChatCompletion_NonRetryableSurfacesProviderMessage(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), nil)
	client.baseRetryDelay = time.Millisecond

	_, err := client.ChatCompletion(context.Background(), testModel(server.URL), "bad", []Message{{Role: "user", Content: "x"}}, 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "Incorrect API key provided" || apiErr.Code != "invalid_api_key" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
	if attempts.Load() != 1 {
		t.Errorf("401 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestChatCompletion_StopsRetryingWhenContextEnds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit reached"}}`))
	}))
	defer server.Close()

	client := NewClient(testLogger(), nil)
	client.baseRetryDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.ChatCompletion(ctx, testModel(server.URL), "k", []Message{{Role: "user", Content: "x"}}, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("retry loop ignored cancellation, took %v", elapsed)
	}
}

func TestCompletionService_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system + user messages, got %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("json mode not requested")
		}
		if req.TopP != 1.0 {
			t.Errorf("top_p = %v, want the configured 1.0", req.TopP)
		}
		_, _ = w.Write([]byte(`{
			"model": "test-model-2025",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"weeks\": ["}, "finish_reason": "length"}],
			"usage": {"prompt_tokens": 800, "completion_tokens": 2048, "total_tokens": 2848}
		}`))
	}))
	defer server.Close()

	model := testModel(server.URL)
	model.UseJSONMode = true
	svc := NewCompletionService(NewClient(testLogger(), nil), model, "k")

	got, err := svc.Complete(context.Background(), generation.CompletionRequest{System: "coach", Prompt: "weeks 1-2", MaxTokens: 2048})
	if err != nil {
		t.Fatal(err)
	}
	want := generation.Completion{Text: `{"weeks": [`, FinishReason: "length", InputTokens: 800, OutputTokens: 2048, Model: "test-model-2025"}
	if *got != want {
		t.Errorf("Complete() = %+v, want %+v", *got, want)
	}
	if svc.Provider() != server.URL {
		t.Errorf("Provider() = %q", svc.Provider())
	}
	if svc.Model() != model.ModelName {
		t.Errorf("Model() = %q, want %q", svc.Model(), model.ModelName)
	}
}

func TestRateLimiterPool_ReusesLimiter(t *testing.T) {
	pool := NewRateLimiterPool(testLogger())
	a := pool.GetOrCreate("m", 60)
	b := pool.GetOrCreate("m", 120)
	if a != b {
		t.Error("expected the existing limiter to be reused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limited := pool.GetOrCreate("slow", 1)
	limited.Allow() // consume the single burst token
	if err := pool.Wait(ctx, "slow", 1); err == nil {
		t.Error("Wait should fail on a cancelled context")
	}
}
