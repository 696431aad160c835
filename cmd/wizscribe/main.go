package main

import (
	"os"

	"github.com/aman-2709/WizScribe/internal/cli"
	"github.com/aman-2709/WizScribe/internal/config"
	"github.com/aman-2709/WizScribe/internal/logging"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	rootCmd := cli.NewRootCmd(&cli.Dependencies{
		Config:  cfg,
		Log:     log,
		Version: Version,
		Commit:  Commit,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
