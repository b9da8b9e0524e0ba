package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// EnvGithubToken is the environment variable name for the GitHub API token
	EnvGithubToken = "GITHUB_TOKEN"
	// EnvOrganization is the environment variable name for the organization to sync
	EnvOrganization = "GITHUB_ORG"
	// EnvRepository restricts the sync to a single repository (owner/name)
	EnvRepository = "GITHUB_REPO"
	// EnvDatabasePath is the environment variable name for the SQLite database path
	EnvDatabasePath = "DATABASE_PATH"
	// EnvMaxRetries overrides the number of retries on rate limit errors
	EnvMaxRetries = "MAX_RETRIES"

	DefaultOrganization = "github"
	DefaultDatabasePath = "github_reviews.db"
	DefaultMaxRetries   = 5
)

// Config represents the application configuration
type Config struct {
	// GitHub API token; required by the sync command only
	GitHubToken string `mapstructure:"github_token"`

	// Organization whose repositories are synced
	Organization string `mapstructure:"organization"`

	// Repository in the format "owner/name"; when set only this repository is synced
	Repository string `mapstructure:"repository"`

	// Path to the SQLite database file
	DatabasePath string `mapstructure:"database_path"`

	// Retries after the initial attempt when GitHub reports a rate limit
	MaxRetries int `mapstructure:"max_retries"`
}

// Load resolves the configuration from the environment and, when path is not
// empty, from a config file. Environment variables take precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("organization", DefaultOrganization)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("max_retries", DefaultMaxRetries)

	bindings := map[string]string{
		"github_token":  EnvGithubToken,
		"organization":  EnvOrganization,
		"repository":    EnvRepository,
		"database_path": EnvDatabasePath,
		"max_retries":   EnvMaxRetries,
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// A relative database path in a config file is relative to that file
	_, fromEnv := os.LookupEnv(EnvDatabasePath)
	if path != "" && !fromEnv && v.InConfig("database_path") && !filepath.IsAbs(config.DatabasePath) {
		config.DatabasePath = filepath.Join(filepath.Dir(path), config.DatabasePath)
	}

	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must not be negative, got %d", config.MaxRetries)
	}

	return &config, nil
}
