package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lamim/programforge/internal/catalog"
	"github.com/lamim/programforge/internal/config"
	"github.com/lamim/programforge/internal/store/postgres"
	"github.com/lamim/programforge/internal/writer"
)

func migrateDatabase(cmd *cobra.Command, args []string) error {
	loadEnv()

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if secrets.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	logger := writer.NewLogger(os.Stdout, nil, logLevel())
	ctx := context.Background()

	db, err := postgres.Open(ctx, secrets.DatabaseURL, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(db.DB()); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Migrations applied")

	if catalogPath != "" {
		exercises, err := catalog.LoadCatalogFile(catalogPath)
		if err != nil {
			return err
		}
		if err := db.UpsertExercises(ctx, exercises); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		logger.Info("Catalog seeded", "exercises", len(exercises))
	}

	if profilesPath != "" {
		profiles, err := catalog.LoadProfilesFile(profilesPath)
		if err != nil {
			return err
		}
		if err := db.UpsertProfiles(ctx, profiles); err != nil {
			return fmt.Errorf("failed to seed profiles: %w", err)
		}
		logger.Info("Profiles seeded", "profiles", len(profiles))
	}
	return nil
}
