package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/metrics"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests
	DefaultHTTPTimeout = 120 * time.Second
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 2 * time.Second
	// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
	RateLimitBackoffMultiplier = 3
	// maxErrorBodyBytes bounds how much of an unparseable error body ends up in a message
	maxErrorBodyBytes = 2048
)

// Client handles HTTP requests to OpenAI-compatible API endpoints
type Client struct {
	httpClient      *http.Client
	rateLimiterPool *RateLimiterPool
	metrics         *metrics.Collector
	logger          *slog.Logger
	baseRetryDelay  time.Duration
}

// NewClient creates a new API client. collector may be nil.
func NewClient(logger *slog.Logger, collector *metrics.Collector) *Client {
	return &Client{
		// Per-request timeouts come from the model config via the context
		httpClient:      &http.Client{},
		rateLimiterPool: NewRateLimiterPool(logger),
		metrics:         collector,
		logger:          logger.With("component", "api_client"),
		baseRetryDelay:  DefaultBaseRetryDelay,
	}
}

// ChatCompletion sends a chat completion request to the configured model.
// maxTokens overrides modelCfg.MaxOutputTokens when positive. Retries on 429
// and 5xx stop as soon as ctx is done.
func (c *Client) ChatCompletion(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	messages []Message,
	maxTokens int,
) (*ChatCompletionResponse, error) {
	modelID := fmt.Sprintf("%s:%s", modelCfg.BaseURL, modelCfg.ModelName)

	waitStart := time.Now()
	if err := c.rateLimiterPool.Wait(ctx, modelID, modelCfg.RateLimitPerMinute); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	c.metrics.RecordRateLimiterWait(modelCfg.ModelName, time.Since(waitStart))

	if maxTokens <= 0 || maxTokens > modelCfg.MaxOutputTokens {
		maxTokens = modelCfg.MaxOutputTokens
	}
	req := ChatCompletionRequest{
		Model:       modelCfg.ModelName,
		Messages:    messages,
		Temperature: modelCfg.Temperature,
		TopP:        modelCfg.TopP,
		MaxTokens:   maxTokens,
	}
	if modelCfg.UseJSONMode {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	maxRetries := max(0, modelCfg.MaxRetries)
	maxBackoff := time.Duration(modelCfg.MaxBackoffSeconds) * time.Second
	timeout := time.Duration(modelCfg.HTTPTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sleepDuration := c.backoff(attempt, lastErr, maxBackoff)

			c.logger.Warn("Retrying API request",
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", sleepDuration,
				"model", modelCfg.ModelName,
				"is_rate_limit", isRateLimitError(lastErr))

			timer := time.NewTimer(sleepDuration)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, modelCfg.BaseURL, apiKey, req, timeout)
		c.metrics.RecordAPIRequest(modelCfg.ModelName, time.Since(start), err == nil)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Cancellation is never retried; the caller has given up
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) backoff(attempt int, lastErr error, maxBackoff time.Duration) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay

	// Rate limits get longer delays (3^n)
	if isRateLimitError(lastErr) {
		backoff = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * c.baseRetryDelay
	}
	if maxBackoff > 0 && backoff > maxBackoff {
		backoff = maxBackoff
	}

	// +/-10% jitter
	jitter := time.Duration(float64(backoff) * 0.1 * (2*rand.Float64() - 1))
	return backoff + jitter
}

func (c *Client) doRequest(
	ctx context.Context,
	baseURL string,
	apiKey string,
	req ChatCompletionRequest,
	timeout time.Duration,
) (*ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	} else {
		c.logger.Debug("API request without key", "endpoint", endpoint)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Message:    fmt.Sprintf("request failed: %v", err),
			StatusCode: 0,
			Retryable:  !errors.Is(err, context.Canceled),
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{
			Message:   fmt.Sprintf("failed to read response: %v", err),
			Retryable: true,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		retryable := isStatusCodeRetryable(httpResp.StatusCode)

		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &APIError{
				Message:    errResp.Error.Message,
				StatusCode: httpResp.StatusCode,
				Type:       errResp.Error.Type,
				Code:       errorCode(errResp.Error.Code),
				Retryable:  retryable,
			}
		}

		msg := string(respBody)
		if len(msg) > maxErrorBodyBytes {
			msg = msg[:maxErrorBodyBytes]
		}
		return nil, &APIError{
			Message:    fmt.Sprintf("API request failed with status %d: %s", httpResp.StatusCode, msg),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryable,
		}
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("failed to parse response: %v", err), StatusCode: httpResp.StatusCode}
	}

	if len(resp.Choices) == 0 {
		return nil, &APIError{Message: "no choices returned in response", StatusCode: httpResp.StatusCode}
	}

	return &resp, nil
}

func errorCode(code any) string {
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

func isRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func isStatusCodeRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// APIError represents an error returned by the API
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}
