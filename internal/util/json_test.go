package util

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain object",
			input: `{"key": "value"}`,
			want:  `{"key": "value"}`,
		},
		{
			name:  "object in markdown",
			input: "```json\n{\"key\": \"value\"}\n```",
			want:  `{"key": "value"}`,
		},
		{
			name:  "bare fence",
			input: "```\n[1, 2]\n```",
			want:  `[1, 2]`,
		},
		{
			name:  "unterminated fence",
			input: "```json\n{\"weeks\": [",
			want:  `{"weeks": [`,
		},
		{
			name:  "object with text before and after",
			input: `Here is the program: {"a": {"b": 1}} Let me know!`,
			want:  `{"a": {"b": 1}}`,
		},
		{
			name:  "braces inside strings",
			input: `Sure: {"note": "use } carefully", "n": 2} done`,
			want:  `{"note": "use } carefully", "n": 2}`,
		},
		{
			name:  "truncated object is not repaired",
			input: `Result: {"weeks": [{"week": 1`,
			want:  `{"weeks": [{"week": 1`,
		},
		{
			name:  "no json at all",
			input: "I cannot help with that.",
			want:  "I cannot help with that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSON_TruncatedStaysInvalid(t *testing.T) {
	got := ExtractJSON(`{"program_name": "Base", "weeks": [{"week": 1, "sessions": [`)
	var v map[string]any
	if err := json.Unmarshal([]byte(got), &v); err == nil {
		t.Errorf("truncated payload should not parse, got %s", got)
	}
}

func TestFindMatchingBracket(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"flat", `{"a": 1}`, 7},
		{"nested", `{"a": {"b": 1}}`, 14},
		{"escaped quote", `{"a": "x\"}"}`, 12},
		{"unbalanced", `{"a": {"b": 1}`, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findMatchingBracket(tt.input, 0, '{', '}'); got != tt.want {
				t.Errorf("findMatchingBracket() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "unescaped newline",
			input: "[\"a\nb\"]",
			want:  "[\"a\\nb\"]",
		},
		{
			name:  "unescaped carriage return",
			input: "[\"a\rb\"]",
			want:  "[\"a\\nb\"]",
		},
		{
			name:  "crlf collapses to one escape",
			input: "{\"n\": \"a\r\nb\"}",
			want:  "{\"n\": \"a\\nb\"}",
		},
		{
			name:  "newlines between tokens untouched",
			input: "{\n\"a\": 1\n}",
			want:  "{\n\"a\": 1\n}",
		},
		{
			name:  "valid json unchanged",
			input: `["a", "b"]`,
			want:  `["a", "b"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeJSON(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
