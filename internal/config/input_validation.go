package config

import (
	"fmt"
	"net/url"
	"unicode"
)

const (
	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxFreeTextLength bounds request fields that end up inside prompts
	MaxFreeTextLength = 500
)

// ValidateInputs performs security validation on user-controllable fields
func (c *Config) ValidateInputs() error {
	if err := validateModelName(c.Model.ModelName); err != nil {
		return err
	}

	if err := validateBaseURL(c.Model.BaseURL); err != nil {
		return err
	}

	if err := c.validateTemplateSizes(); err != nil {
		return err
	}

	return nil
}

// ValidateFreeText checks a request field that is interpolated into a prompt
func ValidateFreeText(field, value string) error {
	if len(value) > MaxFreeTextLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters (got %d)",
			field, MaxFreeTextLength, len(value))
	}

	if containsControlChars(value) {
		return fmt.Errorf("%s contains invalid control characters", field)
	}

	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model name exceeds maximum length of %d (got %d)",
			MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("model name contains invalid control characters")
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("model has invalid base_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("model base_url must use http or https scheme (got %s)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("model base_url must have a host")
	}

	return nil
}

// validateTemplateSizes checks that templates are within reasonable size limits
func (c *Config) validateTemplateSizes() error {
	templates := []struct {
		name  string
		value string
	}{
		{"system_prompt", c.PromptTemplates.SystemPrompt},
		{"chunk_generation", c.PromptTemplates.ChunkGeneration},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// other than newlines, tabs and carriage returns
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
