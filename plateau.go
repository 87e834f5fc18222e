// Package plateau wires the feedback pipeline together: intake with
// synchronous safety filtering, embedding-based clustering, budgeted
// task generation, a paid write/review loop, and transactional git
// deployment.
//
// Basic usage:
//
//	client, err := plateau.New(
//	    plateau.WithConfigOptions(
//	        config.WithRepoPath("/srv/lostworld"),
//	        config.WithAnthropicAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sub, err := client.Feedback.Submit(ctx, "the herbivores starve too fast")
//	summary, err := client.Batch.Run(ctx)
package plateau

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lostworld/plateau/application/agents"
	"github.com/lostworld/plateau/application/batch"
	"github.com/lostworld/plateau/application/intake"
	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/persistence"
	"github.com/lostworld/plateau/infrastructure/provider"
	"github.com/lostworld/plateau/infrastructure/search"
	"github.com/lostworld/plateau/infrastructure/vcs"
	"github.com/lostworld/plateau/internal/config"
	"github.com/lostworld/plateau/internal/database"
	"github.com/lostworld/plateau/internal/log"
)

// Client is the main entry point for the plateau library.
type Client struct {
	// Feedback accepts, filters, and lists submissions.
	Feedback *intake.Service

	// Batch runs the change pipeline over pending feedback.
	Batch *batch.Runner

	cfg        config.AppConfig
	db         database.Database
	store      *persistence.SubmissionStore
	embeddings *search.EmbeddingStore
	accountant *budget.Accountant
	registry   *agent.Registry
	logger     *slog.Logger
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cc := newClientConfig()
	for _, opt := range opts {
		opt(cc)
	}
	cfg := cc.cfg

	logger := cc.logger
	if logger == nil {
		logger = log.Configure(cfg).Slog()
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.DBURL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	store := persistence.NewSubmissionStore(db)
	vectors := search.NewSQLiteVectorStore(db)

	local := cc.local
	if local == nil {
		local = provider.NewOllamaProvider(cfg.OllamaURL(),
			provider.WithOllamaChatModel(cfg.LocalModel()),
			provider.WithOllamaEmbeddingModel(cfg.EmbeddingModel()),
			provider.WithOllamaTimeout(cfg.HTTPTimeout()),
		)
	}

	embeddings := search.NewEmbeddingStore(local, vectors,
		search.WithEmbeddingModel(cfg.EmbeddingModel()),
		search.WithLogger(logger),
	)

	accountant := budget.NewAccountant(cfg.LedgerPath(),
		budget.WithDailyCap(cfg.DailyBudgetGBP()),
		budget.WithWeeklyCap(cfg.WeeklyBudgetGBP()),
		budget.WithCostPerToken(cfg.CostPerTokenGBP()),
		budget.WithAccountantLogger(logger),
	)

	paid := cc.paid
	if paid == nil {
		paid = buildPaidProvider(cfg)
	}

	driver := cc.driver
	if driver == nil {
		driver = vcs.NewGitDriver(cfg.RepoPath(),
			vcs.WithCommandTimeout(cfg.CommandTimeout()))
	}
	scripts := vcs.NewScriptRunner(cfg.RepoPath())

	registry := cc.registry
	if registry == nil {
		deps := agents.Deps{
			Local:      local,
			Paid:       paid,
			Embeddings: embeddings,
			Accountant: accountant,
			Driver:     driver,
			Scripts:    scripts,
			Logger:     logger,
		}
		switch {
		case cfg.DryRun():
			registry = agents.NewDryRunRegistry(cfg, deps)
		case paid == nil:
			logger.Warn("no paid back-end configured, falling back to dry-run write/review/deploy")
			registry = agents.NewDryRunRegistry(cfg, deps)
		default:
			registry = agents.NewRegistry(cfg, deps)
		}
	}

	feedbackSvc := intake.NewService(store, registry, embeddings,
		intake.WithServiceLogger(logger))
	runner := batch.NewRunner(registry, store, embeddings, accountant,
		batch.WithMaxRetries(cfg.MaxWriterRetries()),
		batch.WithRunnerLogger(logger),
	)

	return &Client{
		Feedback:   feedbackSvc,
		Batch:      runner,
		cfg:        cfg,
		db:         db,
		store:      store,
		embeddings: embeddings,
		accountant: accountant,
		registry:   registry,
		logger:     logger,
	}, nil
}

// buildPaidProvider picks the paid back-end from the configured keys.
// Anthropic wins when both are configured. Returns nil when neither is.
func buildPaidProvider(cfg config.AppConfig) provider.TextGenerator {
	if key := cfg.AnthropicAPIKey(); key != "" {
		opts := []provider.AnthropicOption{
			provider.WithAnthropicModel(cfg.WriterModel()),
		}
		if cfg.AnthropicURL() != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(cfg.AnthropicURL()))
		}
		return provider.NewAnthropicProvider(key, opts...)
	}
	if key := cfg.OpenAIAPIKey(); key != "" {
		opts := []provider.OpenAIOption{
			provider.WithOpenAIModel(cfg.WriterModel()),
		}
		if cfg.OpenAIBaseURL() != "" {
			opts = append(opts, provider.WithOpenAIBaseURL(cfg.OpenAIBaseURL()))
		}
		return provider.NewOpenAIProvider(key, opts...)
	}
	return nil
}

// Config returns the effective configuration.
func (c *Client) Config() config.AppConfig { return c.cfg }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Registry returns the agent registry.
func (c *Client) Registry() *agent.Registry { return c.registry }

// Accountant returns the spending accountant.
func (c *Client) Accountant() *budget.Accountant { return c.accountant }

// Store returns the submission store.
func (c *Client) Store() *persistence.SubmissionStore { return c.store }

// Embeddings returns the embedding store.
func (c *Client) Embeddings() *search.EmbeddingStore { return c.embeddings }

// Close releases the client's resources.
func (c *Client) Close() error {
	return c.db.Close()
}
