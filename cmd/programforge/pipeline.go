package main

import (
	"fmt"
	"log/slog"

	"github.com/lamim/programforge/internal/api"
	"github.com/lamim/programforge/internal/assembler"
	"github.com/lamim/programforge/internal/candidates"
	"github.com/lamim/programforge/internal/catalog"
	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/generation"
	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/internal/metrics"
	"github.com/lamim/programforge/internal/orchestrator"
	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/pkg/models"
)

// storage is where a pipeline reads its catalog and writes its jobs
type storage struct {
	catalog   catalog.Provider
	profiles  catalog.ProfileResolver
	jobs      job.Store
	artifacts job.ArtifactStore
}

func newFilter(cfg *config.Config, logger *slog.Logger) *candidates.Filter {
	return candidates.New(candidates.Options{
		MinimumPerSession: cfg.Filter.MinimumPerSession,
		Matcher:           candidates.MatcherByName(cfg.Filter.ConflictMatcher),
	}, logger)
}

func newPlanner(cfg *config.Config) *planner.Planner {
	return planner.New(planner.Options{
		SmallProgramThreshold: cfg.Planner.SmallProgramThreshold,
		ChunkSize:             cfg.Planner.ChunkSize,
		MaxWeeksPerChunk:      cfg.Planner.MaxWeeksPerChunk,
		FloorTokens:           cfg.Planner.FloorTokens,
		TokensPerSession:      cfg.Planner.TokensPerSession,
		OverheadTokens:        cfg.Planner.OverheadTokens,
		CeilingTokens:         cfg.Model.MaxOutputTokens,
	})
}

// newController wires every pipeline stage against the given storage
func newController(cfg *config.Config, secrets *config.Secrets, st storage, collector *metrics.Collector, logger *slog.Logger) *orchestrator.Controller {
	client := api.NewClient(logger, collector)
	svc := api.NewCompletionService(client, cfg.Model, secrets.GetAPIKey(cfg.Model.BaseURL))

	executor := generation.NewExecutor(svc,
		generation.Prompts{
			System: cfg.PromptTemplates.SystemPrompt,
			Chunk:  cfg.PromptTemplates.ChunkGeneration,
		},
		generation.Pricing{
			InputPerMillion:  cfg.Pricing.InputPerMillion,
			OutputPerMillion: cfg.Pricing.OutputPerMillion,
		},
		collector, logger)

	opts := orchestrator.OptionsFromConfig(cfg)
	opts.Provider = svc.Provider()
	opts.Model = svc.Model()

	return orchestrator.New(opts, orchestrator.Dependencies{
		Catalog:   st.catalog,
		Profiles:  st.profiles,
		Filter:    newFilter(cfg, logger),
		Planner:   newPlanner(cfg),
		Executor:  executor,
		Assembler: assembler.New(collector, logger),
		Jobs:      st.jobs,
		Artifacts: st.artifacts,
		Metrics:   collector,
	}, logger)
}

// loadMemoryCatalog reads the catalog and optional profiles from YAML files
func loadMemoryCatalog(catalogFile, profilesFile string) (*catalog.Memory, error) {
	if catalogFile == "" {
		return nil, fmt.Errorf("--catalog is required")
	}
	exercises, err := catalog.LoadCatalogFile(catalogFile)
	if err != nil {
		return nil, err
	}
	var profiles map[string]models.Constraints
	if profilesFile != "" {
		if profiles, err = catalog.LoadProfilesFile(profilesFile); err != nil {
			return nil, err
		}
	}
	return catalog.NewMemory(exercises, profiles), nil
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
