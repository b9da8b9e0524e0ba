package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema if it does not exist",
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

		logger.Info("Database schema is up to date", "path", cfg.DatabasePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
