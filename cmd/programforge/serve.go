package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/job"
	"github.com/lamim/programforge/internal/metrics"
	"github.com/lamim/programforge/internal/server"
	"github.com/lamim/programforge/internal/store/postgres"
	"github.com/lamim/programforge/internal/writer"
)

func serve(cmd *cobra.Command, args []string) error {
	loadEnv()

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := writer.NewLogger(os.Stdout, nil, logLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st     storage
		reader job.ArtifactReader
		jobs   server.JobReader
	)
	switch cfg.Server.Store {
	case "postgres":
		if secrets.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when server.store is postgres")
		}
		db, err := postgres.Open(ctx, secrets.DatabaseURL, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(db.DB()); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		st = storage{catalog: db, profiles: db, jobs: db, artifacts: db}
		reader, jobs = db, db
	default:
		mem, err := loadMemoryCatalog(catalogPath, profilesPath)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		store := job.NewMemoryStore()
		st = storage{catalog: mem, profiles: mem, jobs: store, artifacts: store}
		reader, jobs = store, store
	}

	collector := metrics.NewCollector(logger)
	ctrl := newController(cfg, secrets, st, collector, logger)

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	srv := server.New(cfg.Server.Addr, server.NewHandlers(ctrl, jobs, reader, logger), shutdownTimeout, logger)

	logger.Info("programforge serving",
		"version", Version,
		"addr", cfg.Server.Addr,
		"store", cfg.Server.Store,
		"max_concurrent_jobs", cfg.Server.MaxConcurrentJobs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return ctrl.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	logger.Info("programforge stopped")
	return nil
}
