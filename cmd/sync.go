package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wesm/github-review-sync/internal/api"
	"github.com/wesm/github-review-sync/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch repositories, pull requests and reviews from GitHub",
	Long: `Pages through the organization's public repositories (or only the repository
given by GITHUB_REPO), fetches every pull request in any state together with its
reviews, and upserts them into the database. Rate limits are waited out and retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger = logger.With("run_id", uuid.NewString())

		if cfg.Repository != "" {
			if _, _, err := api.ParseRepositoryString(cfg.Repository); err != nil {
				return fmt.Errorf("invalid repository: %w", err)
			}
		}

		// Initialize GitHub client
		client, err := api.NewGitHubClient(cfg.GitHubToken)
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		limiter := api.NewRateLimiter(client, logger, api.WithMaxRetries(cfg.MaxRetries))
		syncer := sync.New(database, client, limiter, logger, sync.Options{
			Organization: cfg.Organization,
			Repository:   cfg.Repository,
		})

		startTime := time.Now()
		result, err := syncer.Run(ctx)
		if err != nil {
			if result != nil {
				logger.Error("Sync stopped before completion",
					"repositories", result.Repositories,
					"pull_requests", result.PullRequests,
					"reviews", result.Reviews,
				)
			}
			return fmt.Errorf("sync failed: %w", err)
		}

		logger.Info("Sync completed",
			"duration", time.Since(startTime).Round(time.Millisecond),
			"repositories", result.Repositories,
			"skipped_private", result.SkippedPrivate,
			"pull_requests", result.PullRequests,
			"reviews", result.Reviews,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
