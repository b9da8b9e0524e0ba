package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/wesm/github-review-sync/config"
	"github.com/wesm/github-review-sync/internal/db"
	"github.com/wesm/github-review-sync/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "github-review-sync",
	Short: "Sync GitHub pull requests and reviews into a local SQLite database.",
	Long: `github-review-sync fetches the repositories of a GitHub organization (or a single
repository), their pull requests and the reviews on them, and stores everything in a
local SQLite database keyed by GitHub ids. Runs are idempotent and can be resumed.

GitHub token can be provided via the ` + config.EnvGithubToken + ` environment variable.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to an optional configuration file")
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite database (overrides "+config.EnvDatabasePath+")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

// loadConfig resolves configuration and the logger shared by every subcommand
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := logging.New(os.Stderr, verbose)

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	return cfg, logger, nil
}

// openDatabase connects to the store and makes sure the schema exists
func openDatabase(cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	database, err := db.New(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Initialize(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}
