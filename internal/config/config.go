package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Model           ModelConfig     `toml:"model"`
	Pricing         PricingConfig   `toml:"pricing"`
	Pipeline        PipelineConfig  `toml:"pipeline"`
	Planner         PlannerConfig   `toml:"planner"`
	Filter          FilterConfig    `toml:"filter"`
	Server          ServerConfig    `toml:"server"`
	Database        DatabaseConfig  `toml:"database"`
	PromptTemplates PromptTemplates `toml:"prompt_templates"`
}

// ModelConfig represents the completion endpoint used for program generation
type ModelConfig struct {
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	TopP               float64 `toml:"top_p"`
	MaxOutputTokens    int     `toml:"max_output_tokens"` // Structured output ceiling; chunk budgets never exceed it
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"`
	MaxRetries         int     `toml:"max_retries"`          // Transport retries on 429/5xx (default 3, -1 = none)
	MaxBackoffSeconds  int     `toml:"max_backoff_seconds"`  // Cap on a single backoff sleep (default 60)
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"` // Per-request timeout (default 120)
	UseJSONMode        bool    `toml:"use_json_mode"`        // Request response_format=json_object
}

// PricingConfig holds per-million-token rates used for cost estimates
type PricingConfig struct {
	InputPerMillion  float64 `toml:"input_per_million"`
	OutputPerMillion float64 `toml:"output_per_million"`
}

// PipelineConfig controls the deadline and retry policy of a generation job
type PipelineConfig struct {
	BaseSetupSeconds       int    `toml:"base_setup_seconds"`        // Fixed allowance for filtering, assembly and persistence
	PerWeekSeconds         int    `toml:"per_week_seconds"`          // Allowance per requested week
	PlatformMaxSeconds     int    `toml:"platform_max_seconds"`      // Hosting platform's hard execution limit
	TruncationRetries      int    `toml:"truncation_retries"`        // Retries with a larger budget (default 1, -1 = none)
	TerminalWriteTimeoutMs int    `toml:"terminal_write_timeout_ms"` // Budget for the failure write after the deadline
	WorkerGraceMs          int    `toml:"worker_grace_ms"`           // How long to wait for a cancelled worker to exit
	MaxWeeks               int    `toml:"max_weeks"`
	MaxSessionsPerWeek     int    `toml:"max_sessions_per_week"`
	OutputDir              string `toml:"output_dir"` // Session directories for local runs
}

// BaseSetup returns the fixed deadline allowance
func (p PipelineConfig) BaseSetup() time.Duration {
	return time.Duration(p.BaseSetupSeconds) * time.Second
}

// PerWeek returns the per-week deadline allowance
func (p PipelineConfig) PerWeek() time.Duration {
	return time.Duration(p.PerWeekSeconds) * time.Second
}

// PlatformMax returns the platform's hard execution limit
func (p PipelineConfig) PlatformMax() time.Duration {
	return time.Duration(p.PlatformMaxSeconds) * time.Second
}

// TerminalWriteTimeout returns the budget for writing a failure after the deadline
func (p PipelineConfig) TerminalWriteTimeout() time.Duration {
	return time.Duration(p.TerminalWriteTimeoutMs) * time.Millisecond
}

// WorkerGrace returns how long a cancelled worker is given to exit
func (p PipelineConfig) WorkerGrace() time.Duration {
	return time.Duration(p.WorkerGraceMs) * time.Millisecond
}

// TruncationRetryLimit returns the effective number of truncation retries
func (p PipelineConfig) TruncationRetryLimit() int {
	return max(0, p.TruncationRetries)
}

// PlannerConfig controls chunk sizing and carried context
type PlannerConfig struct {
	SmallProgramThreshold int `toml:"small_program_threshold"`
	ChunkSize             int `toml:"chunk_size"`
	MaxWeeksPerChunk      int `toml:"max_weeks_per_chunk"` // Platform hint (0 = none)
	FloorTokens           int `toml:"floor_tokens"`
	TokensPerSession      int `toml:"tokens_per_session"`
	OverheadTokens        int `toml:"overhead_tokens"`
	ContextWindow         int `toml:"context_window"` // Trailing weeks summarised for the next chunk
	ContextSample         int `toml:"context_sample"` // Exercise names sampled per summarised week
}

// FilterConfig controls the candidate filter
type FilterConfig struct {
	MinimumPerSession int    `toml:"minimum_per_session"`
	ConflictMatcher   string `toml:"conflict_matcher"` // "substring" (default) or "tags"
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr                   string `toml:"addr"`
	MaxConcurrentJobs      int    `toml:"max_concurrent_jobs"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	Store                  string `toml:"store"` // "memory" (default) or "postgres"
}

// DatabaseConfig controls the Postgres connection pool. The DSN comes from DATABASE_URL.
type DatabaseConfig struct {
	MaxOpenConns           int `toml:"max_open_conns"`
	MaxIdleConns           int `toml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `toml:"conn_max_lifetime_seconds"`
}

// PromptTemplates holds the customizable prompt templates
type PromptTemplates struct {
	SystemPrompt    string `toml:"system_prompt"`
	ChunkGeneration string `toml:"chunk_generation"`
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys     map[string]string
	DatabaseURL string
}

const (
	// MaxRequestWeeks is the largest program the pipeline accepts
	MaxRequestWeeks = 52
	// MaxRequestSessions is the most sessions per week the pipeline accepts
	MaxRequestSessions = 14
	// MaxConcurrentJobs caps server.max_concurrent_jobs
	MaxConcurrentJobs = 256
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateModelConfig(c.Model); err != nil {
		return err
	}

	if c.Pricing.InputPerMillion < 0 || c.Pricing.OutputPerMillion < 0 {
		return fmt.Errorf("pricing rates must not be negative")
	}

	p := c.Pipeline
	if p.BaseSetupSeconds < 0 {
		return fmt.Errorf("pipeline.base_setup_seconds must not be negative")
	}
	if p.PerWeekSeconds < 1 {
		return fmt.Errorf("pipeline.per_week_seconds must be at least 1")
	}
	if p.PlatformMaxSeconds < 1 {
		return fmt.Errorf("pipeline.platform_max_seconds must be at least 1")
	}
	if p.TruncationRetries < -1 || p.TruncationRetries > 3 {
		return fmt.Errorf("pipeline.truncation_retries must be between -1 and 3 (got %d)", p.TruncationRetries)
	}
	if p.MaxWeeks < 1 || p.MaxWeeks > MaxRequestWeeks {
		return fmt.Errorf("pipeline.max_weeks must be between 1 and %d (got %d)", MaxRequestWeeks, p.MaxWeeks)
	}
	if p.MaxSessionsPerWeek < 1 || p.MaxSessionsPerWeek > MaxRequestSessions {
		return fmt.Errorf("pipeline.max_sessions_per_week must be between 1 and %d (got %d)", MaxRequestSessions, p.MaxSessionsPerWeek)
	}

	pl := c.Planner
	if pl.SmallProgramThreshold < 1 {
		return fmt.Errorf("planner.small_program_threshold must be at least 1")
	}
	if pl.ChunkSize < 1 {
		return fmt.Errorf("planner.chunk_size must be at least 1")
	}
	if pl.MaxWeeksPerChunk < 0 {
		return fmt.Errorf("planner.max_weeks_per_chunk must not be negative")
	}
	if pl.FloorTokens > c.Model.MaxOutputTokens {
		return fmt.Errorf("planner.floor_tokens (%d) must not exceed model.max_output_tokens (%d)", pl.FloorTokens, c.Model.MaxOutputTokens)
	}

	if c.Filter.MinimumPerSession < 1 {
		return fmt.Errorf("filter.minimum_per_session must be at least 1")
	}
	switch strings.ToLower(c.Filter.ConflictMatcher) {
	case "substring", "tags":
	default:
		return fmt.Errorf("filter.conflict_matcher must be one of: substring, tags (got %s)", c.Filter.ConflictMatcher)
	}

	if c.Server.MaxConcurrentJobs < 1 || c.Server.MaxConcurrentJobs > MaxConcurrentJobs {
		return fmt.Errorf("server.max_concurrent_jobs must be between 1 and %d (got %d)", MaxConcurrentJobs, c.Server.MaxConcurrentJobs)
	}
	switch c.Server.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("server.store must be one of: memory, postgres (got %s)", c.Server.Store)
	}

	if c.PromptTemplates.ChunkGeneration == "" {
		return fmt.Errorf("prompt_templates.chunk_generation is required")
	}

	return nil
}

// StructurallyInfeasible reports whether a program of the given length cannot
// fit inside the platform limit even before any work starts
func (c *Config) StructurallyInfeasible(weeks int) bool {
	need := c.Pipeline.BaseSetup() + time.Duration(weeks)*c.Pipeline.PerWeek()
	return need > c.Pipeline.PlatformMax()
}

func validateModelConfig(mc ModelConfig) error {
	if mc.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	if mc.ModelName == "" {
		return fmt.Errorf("model.model_name is required")
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("model.top_p must be between 0 and 1")
	}
	if mc.MaxOutputTokens < 1 {
		return fmt.Errorf("model.max_output_tokens must be at least 1")
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("model.rate_limit_per_minute must be at least 1")
	}
	if mc.MaxRetries < -1 {
		return fmt.Errorf("model.max_retries must be -1 or greater")
	}
	return nil
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	// Provider-specific keys override the generic one
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		secrets.APIKeys["openrouter"] = key
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		secrets.APIKeys["groq"] = key
	}

	secrets.DatabaseURL = os.Getenv("DATABASE_URL")

	return secrets, nil
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	if provider := GetProviderName(baseURL); provider != baseURL {
		if key := s.APIKeys[provider]; key != "" {
			return key
		}
	}

	if key := s.APIKeys["generic"]; key != "" {
		return key
	}

	// Local servers often run without auth
	return ""
}

// GetProviderName extracts a provider name from a base URL for rate limiting and audit records
func GetProviderName(baseURL string) string {
	switch {
	case strings.Contains(baseURL, "openai.com"):
		return "openai"
	case strings.Contains(baseURL, "openrouter.ai"):
		return "openrouter"
	case strings.Contains(baseURL, "groq.com"):
		return "groq"
	}
	return baseURL
}
