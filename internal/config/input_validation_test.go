package config

import (
	"strings"
	"testing"
)

func TestValidateFreeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // substring of expected error, empty for none
	}{
		{"plain", "Build strength for a half marathon", ""},
		{"newlines ok", "Hypertrophy\nupper body focus", ""},
		{"too long", strings.Repeat("a", MaxFreeTextLength+1), "exceeds maximum length"},
		{"null byte", "Goal\x00", "invalid control characters"},
		{"bell", "Goal\x07", "invalid control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFreeText("goal", tt.input)
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.openai.com/v1", false},
		{"http://localhost:8000/v1", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if err := validateBaseURL(tt.url); (err != nil) != tt.wantErr {
				t.Errorf("validateBaseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInputs_TemplateSize(t *testing.T) {
	cfg := validConfig()
	cfg.PromptTemplates.ChunkGeneration = strings.Repeat("x", MaxTemplateSize+1)
	if err := cfg.ValidateInputs(); err == nil || !strings.Contains(err.Error(), "chunk_generation") {
		t.Errorf("expected template size error, got %v", err)
	}
}

func TestValidateModelName(t *testing.T) {
	if err := validateModelName(strings.Repeat("m", MaxModelNameLength+1)); err == nil {
		t.Error("expected error for long model name")
	}
	if err := validateModelName("gpt-4o\x01"); err == nil {
		t.Error("expected error for control characters")
	}
}
