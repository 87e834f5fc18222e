// Package main is the entry point for the plateau CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lostworld/plateau/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plateau",
		Short: "Autonomous change pipeline for The Lost World Plateau",
		Long: `Plateau collects free-text user feedback, filters and clusters it,
and turns it into reviewed, budget-capped code changes deployed through git.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(batchCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from a .env file and the environment.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
