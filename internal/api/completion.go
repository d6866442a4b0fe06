package api

import (
	"context"
	"strings"

	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/generation"
)

// CompletionService adapts the chat client to the single-prompt completion
// interface the generation executor calls
type CompletionService struct {
	client   *Client
	model    config.ModelConfig
	apiKey   string
	provider string
}

// NewCompletionService binds a client to one model endpoint
func NewCompletionService(client *Client, model config.ModelConfig, apiKey string) *CompletionService {
	return &CompletionService{
		client:   client,
		model:    model,
		apiKey:   apiKey,
		provider: config.GetProviderName(model.BaseURL),
	}
}

// Provider returns the provider identifier recorded in audit records
func (s *CompletionService) Provider() string {
	return s.provider
}

// Model returns the configured model name
func (s *CompletionService) Model() string {
	return s.model.ModelName
}

// Complete sends one prompt and reports the text, finish reason and token usage
func (s *CompletionService) Complete(ctx context.Context, req generation.CompletionRequest) (*generation.Completion, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	resp, err := s.client.ChatCompletion(ctx, s.model, s.apiKey, messages, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	choice := resp.Choices[0]
	model := resp.Model
	if model == "" {
		model = s.model.ModelName
	}
	return &generation.Completion{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        model,
	}, nil
}
