package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes TOML, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no model endpoint
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	m := &cfg.Model
	if m.Temperature == 0 {
		m.Temperature = 0.7
	}
	if m.TopP == 0 {
		m.TopP = 1.0
	}
	if m.MaxOutputTokens == 0 {
		m.MaxOutputTokens = 16384
	}
	if m.RateLimitPerMinute == 0 {
		m.RateLimitPerMinute = 60
	}
	// In TOML we can't distinguish 0 from unset:
	// unset (0) -> 3, -1 -> no retries
	if m.MaxRetries == 0 {
		m.MaxRetries = 3
	}
	if m.MaxBackoffSeconds == 0 {
		m.MaxBackoffSeconds = 60
	}
	if m.HTTPTimeoutSeconds == 0 {
		m.HTTPTimeoutSeconds = 120
	}

	p := &cfg.Pipeline
	if p.BaseSetupSeconds == 0 {
		p.BaseSetupSeconds = 20
	}
	if p.PerWeekSeconds == 0 {
		p.PerWeekSeconds = 25
	}
	if p.PlatformMaxSeconds == 0 {
		p.PlatformMaxSeconds = 300
	}
	if p.TruncationRetries == 0 {
		p.TruncationRetries = 1
	}
	if p.TerminalWriteTimeoutMs == 0 {
		p.TerminalWriteTimeoutMs = 2000
	}
	if p.WorkerGraceMs == 0 {
		p.WorkerGraceMs = 2000
	}
	if p.MaxWeeks == 0 {
		p.MaxWeeks = 16
	}
	if p.MaxSessionsPerWeek == 0 {
		p.MaxSessionsPerWeek = 7
	}
	if p.OutputDir == "" {
		p.OutputDir = "output"
	}

	pl := &cfg.Planner
	if pl.SmallProgramThreshold == 0 {
		pl.SmallProgramThreshold = 3
	}
	if pl.ChunkSize == 0 {
		pl.ChunkSize = 2
	}
	if pl.FloorTokens == 0 {
		pl.FloorTokens = min(2048, m.MaxOutputTokens)
	}
	if pl.TokensPerSession == 0 {
		pl.TokensPerSession = 450
	}
	if pl.OverheadTokens == 0 {
		pl.OverheadTokens = 300
	}
	if pl.ContextWindow == 0 {
		pl.ContextWindow = 2
	}
	if pl.ContextSample == 0 {
		pl.ContextSample = 3
	}

	if cfg.Filter.MinimumPerSession == 0 {
		cfg.Filter.MinimumPerSession = 4
	}
	if cfg.Filter.ConflictMatcher == "" {
		cfg.Filter.ConflictMatcher = "substring"
	}
	cfg.Filter.ConflictMatcher = strings.ToLower(cfg.Filter.ConflictMatcher)

	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.MaxConcurrentJobs == 0 {
		s.MaxConcurrentJobs = 8
	}
	if s.ShutdownTimeoutSeconds == 0 {
		s.ShutdownTimeoutSeconds = 15
	}
	if s.Store == "" {
		s.Store = "memory"
	}

	d := &cfg.Database
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = 10
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = 5
	}
	if d.ConnMaxLifetimeSeconds == 0 {
		d.ConnMaxLifetimeSeconds = 300
	}

	if cfg.PromptTemplates.SystemPrompt == "" {
		cfg.PromptTemplates.SystemPrompt = GetDefaultSystemPrompt()
	}
	if cfg.PromptTemplates.ChunkGeneration == "" {
		cfg.PromptTemplates.ChunkGeneration = GetDefaultChunkTemplate()
	}
}
