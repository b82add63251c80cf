package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/spikeprime/pkg/config"
)

// loadConfig resolves the config file (--config flag or the default
// location) and applies flag overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.DefaultConfig(), nil
		}
		path = filepath.Join(home, ".config", "spike", "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	// --log-level takes precedence over the config file
	if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// configureLogger loads the config and builds a logger from it. Commands
// that produce terminal output keep the logger quiet unless --log-level
// asks otherwise.
func configureLogger(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	// Keep tables and progress lines clean unless a level was asked for
	// explicitly via flag or config file
	explicit, _ := cmd.Flags().GetString("log-level")
	if explicit == "" && cfg.LogLevel == config.DefaultConfig().LogLevel {
		cfg.LogLevel = "error"
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
