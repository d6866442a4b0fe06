package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lamim/programforge/internal/candidates"
	"github.com/lamim/programforge/internal/catalog"
	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/orchestrator"
	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/internal/writer"
)

type dryRunReport struct {
	Stats         candidates.FilterStats `json:"stats"`
	Sufficient    bool                   `json:"sufficient"`
	Error         string                 `json:"error,omitempty"`
	Chunks        []planner.Chunk        `json:"chunks"`
	TokenBudget   int                    `json:"token_budget"`
	Deadline      string                 `json:"deadline"`
	DeadlineClips bool                   `json:"deadline_clipped"`
}

func filterDryRun(cmd *cobra.Command, args []string) error {
	loadEnv()

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := writer.NewLogger(os.Stderr, nil, logLevel())

	req, err := catalog.LoadRequestFile(requestPath)
	if err != nil {
		return fmt.Errorf("failed to load request: %w", err)
	}
	mem, err := loadMemoryCatalog(catalogPath, profilesPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	ctx := context.Background()
	constraints, err := catalog.ResolveConstraints(ctx, req, mem)
	if err != nil {
		return err
	}
	exercises, err := mem.ListExercises(ctx)
	if err != nil {
		return err
	}

	var report dryRunReport
	pool, err := newFilter(cfg, logger).Build(exercises, constraints, req.SessionsPerWeek)
	report.Stats = pool.Stats
	report.Sufficient = err == nil
	if err != nil {
		report.Error = err.Error()
	}

	if report.Chunks, err = newPlanner(cfg).Plan(req.Weeks, req.SessionsPerWeek); err != nil {
		return err
	}
	if len(report.Chunks) > 0 {
		report.TokenBudget = report.Chunks[0].TokenBudget
	}
	budget, clipped := orchestrator.OptionsFromConfig(cfg).Budget(req.Weeks)
	report.Deadline = budget.String()
	report.DeadlineClips = clipped

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
