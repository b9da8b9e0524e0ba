package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of stored rows per table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		counts, err := database.Counts(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "repositories:  %d\n", counts.Repositories)
		fmt.Fprintf(out, "users:         %d\n", counts.Users)
		fmt.Fprintf(out, "pull_requests: %d\n", counts.PullRequests)
		fmt.Fprintf(out, "reviews:       %d\n", counts.Reviews)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
