package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lamim/programforge/internal/catalog"
	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/internal/metrics"
	"github.com/lamim/programforge/internal/writer"
)

func runGeneration(cmd *cobra.Command, args []string) error {
	loadEnv()

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	req, err := catalog.LoadRequestFile(requestPath)
	if err != nil {
		return fmt.Errorf("failed to load request: %w", err)
	}
	mem, err := loadMemoryCatalog(catalogPath, profilesPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	sessionMgr, err := writer.NewSessionManager(cfg.Pipeline.OutputDir, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	logger, logFile, err := writer.SetupLogger(sessionMgr, logLevel())
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		if logFile != nil {
			_ = logFile.Sync()
			_ = logFile.Close()
		}
	}()

	logger.Info("programforge starting",
		"version", Version,
		"config", configPath,
		"session_dir", sessionMgr.GetSessionDir(),
		"weeks", req.Weeks,
		"sessions_per_week", req.SessionsPerWeek)

	if err := sessionMgr.BackupConfig(configPath); err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	if cfg.StructurallyInfeasible(req.Weeks) {
		logger.Warn("Requested program cannot fit the platform limit and will likely time out",
			"weeks", req.Weeks,
			"platform_max", cfg.Pipeline.PlatformMax())
	}

	collector := metrics.NewCollector(logger)
	ctrl := newController(cfg, secrets, storage{
		catalog:   mem,
		profiles:  mem,
		jobs:      job.NewMemoryStore(),
		artifacts: writer.NewFileArtifactStore(sessionMgr, logger),
	}, collector, logger)

	var (
		barMu sync.Mutex
		bar   *progressbar.ProgressBar
	)
	ctrl.Observe(func(j job.Job) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.Default(int64(j.TotalSteps), "generating")
		}
		_ = bar.Set(j.CurrentStep)
		bar.Describe(j.ProgressMessage)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := ctrl.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("request rejected: %w", err)
	}
	barMu.Lock()
	if bar != nil {
		_ = bar.Finish()
	}
	barMu.Unlock()

	if res.Err != nil {
		logger.Error("Generation failed",
			"job_id", res.Job.ID,
			"kind", res.Job.ErrorKind,
			"error", res.Err)
		return fmt.Errorf("generation failed: %s", derefString(res.Job.ErrorMessage))
	}

	logger.Info("Generation completed",
		"job_id", res.Job.ID,
		"program", res.Artifact.Program.Name,
		"weeks", len(res.Artifact.Program.Weeks),
		"cost_usd", res.Artifact.Summary.EstimatedCostUSD,
		"output", sessionMgr.GetProgramPath(res.Job.ID))
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
