package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath   string
	envFile      string
	catalogPath  string
	profilesPath string
	requestPath  string
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "programforge",
		Short: "programforge - deadline-bounded workout program generator",
		Long: `programforge generates multi-week workout programs with an LLM.
Long programs are generated in chunks, each one seeing a digest of the weeks
before it, and every job is bounded by a wall-clock deadline.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate one program locally",
		Long: `Generate a single program and write it to a new session directory:
1. Filter the catalog by equipment, level, exclusions and aversions
2. Generate the program chunk by chunk
3. Validate and assemble the result
4. Save program_<job>.json and audit.jsonl`,
		RunE: runGeneration,
	}
	runCmd.Flags().StringVar(&requestPath, "request", "request.yaml", "Path to the program request (YAML or JSON)")
	runCmd.Flags().StringVar(&catalogPath, "catalog", "catalog.yaml", "Path to the exercise catalog")
	runCmd.Flags().StringVar(&profilesPath, "profiles", "", "Path to client profiles (optional)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Accept program requests over HTTP, run them in the background and expose job status and /metrics",
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the exercise catalog (memory store only)")
	serveCmd.Flags().StringVar(&profilesPath, "profiles", "", "Path to client profiles (memory store only)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply the embedded Postgres migrations, optionally seeding the catalog and client profiles",
		RunE:  migrateDatabase,
	}
	migrateCmd.Flags().StringVar(&catalogPath, "seed-catalog", "", "Catalog YAML to upsert after migrating")
	migrateCmd.Flags().StringVar(&profilesPath, "seed-profiles", "", "Profiles YAML to upsert after migrating")

	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Show how the catalog is narrowed for a request",
		Long:  "Run the candidate filter without generating anything and print per-stage rejection counts",
		RunE:  filterDryRun,
	}
	filterCmd.Flags().StringVar(&requestPath, "request", "request.yaml", "Path to the program request")
	filterCmd.Flags().StringVar(&catalogPath, "catalog", "catalog.yaml", "Path to the exercise catalog")
	filterCmd.Flags().StringVar(&profilesPath, "profiles", "", "Path to client profiles (optional)")

	rootCmd.AddCommand(runCmd, serveCmd, migrateCmd, filterCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
