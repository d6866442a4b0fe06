// Package generation runs one bounded completion call per chunk and turns the
// response into a classified partial result.
package generation

import "context"

// CompletionRequest is one prompt with its output budget
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completion is the provider's answer to a CompletionRequest
type Completion struct {
	Text         string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}

// CompletionService is the external text-completion provider.
// Implementations must honour ctx cancellation on the in-flight call.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionFunc adapts a function to CompletionService
type CompletionFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

// Complete calls f
func (f CompletionFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}
