package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lostworld/plateau"
	"github.com/lostworld/plateau/internal/log"
)

func batchCmd() *cobra.Command {
	var (
		envFile string
		dryRun  bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run one batch of the change pipeline",
		Long: `Run one batch of the change pipeline: cluster pending feedback,
prioritise it into tasks, and drive each task through write, review,
and deploy under the spending budget.

With --dry-run the paid write/review stages and the deployer are
replaced by stand-ins that build real prompts but spend nothing and
leave the repository untouched. The local model and embedding stages
still run for real.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(envFile, dryRun, output)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Mock the paid and deploy stages")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Summary format: yaml or json")

	return cmd
}

func runBatch(envFile string, dryRun bool, output string) error {
	if output != "yaml" && output != "json" {
		return fmt.Errorf("unknown output format %q (want yaml or json)", output)
	}

	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger := log.Configure(cfg)
	slogger := logger.Slog()

	client, err := plateau.New(
		plateau.WithConfig(cfg),
		plateau.WithLogger(slogger),
		plateau.WithDryRun(dryRun || cfg.DryRun()),
	)
	if err != nil {
		return fmt.Errorf("create plateau client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close plateau client", slog.Any("error", err))
		}
	}()

	ctx := log.WithRunID(context.Background(), uuid.NewString())
	summary, err := client.Batch.Run(ctx)
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	report := summary.Report()
	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	default:
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	}
	return nil
}
