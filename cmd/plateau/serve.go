package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lostworld/plateau"
	"github.com/lostworld/plateau/infrastructure/api"
	v1 "github.com/lostworld/plateau/infrastructure/api/v1"
	"github.com/lostworld/plateau/internal/config"
	"github.com/lostworld/plateau/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP feedback API",
		Long: `Start the HTTP feedback API.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                  Server host to bind to (default: 0.0.0.0)
  PORT                  Server port to listen on (default: 8000)
  DATA_DIR              Data directory (default: .plateau)
  DB_URL                Database URL (default: sqlite:///{data_dir}/plateau.db)
  LOG_LEVEL             Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT            Log format: pretty, json (default: pretty)
  REPO_PATH             Target repository the pipeline modifies
  CONTRACT_FILE         Architectural contract file (default: contract.md)
  OLLAMA_URL            Local model endpoint (default: http://localhost:11434)
  LOCAL_MODEL           Local chat model (default: llama3.1:8b)
  EMBEDDING_MODEL       Embedding model (default: nomic-embed-text)
  ANTHROPIC_API_KEY     Paid back-end key for the write/review stages
  DAILY_BUDGET_GBP      Daily spending cap (default: 2.00)
  WEEKLY_BUDGET_GBP     Weekly spending cap (default: 8.00)
  CORS_ORIGINS          Comma-separated allowed origins`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	var overrides []config.AppConfigOption
	if host != "" {
		overrides = append(overrides, config.WithHost(host))
	}
	if port != 0 {
		overrides = append(overrides, config.WithPort(port))
	}
	cfg = cfg.Apply(overrides...)

	logger := log.Configure(cfg)
	slogger := logger.Slog()

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting plateau", attrs...)

	client, err := plateau.New(
		plateau.WithConfig(cfg),
		plateau.WithLogger(slogger),
	)
	if err != nil {
		return fmt.Errorf("create plateau client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close plateau client", slog.Any("error", err))
		}
	}()

	server := api.NewServer(cfg.Addr(), cfg.CORSOrigins(), slogger)
	router := server.Router()

	feedbackRouter := v1.NewFeedbackRouter(client.Feedback, slogger)
	healthRouter := v1.NewHealthRouter(client.Feedback, slogger)
	router.Mount("/api/feedback", feedbackRouter.Routes())
	router.Get("/api/health", healthRouter.Health)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
