package agents

import (
	"log/slog"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/provider"
	"github.com/lostworld/plateau/infrastructure/search"
	"github.com/lostworld/plateau/infrastructure/vcs"
	"github.com/lostworld/plateau/internal/config"
)

// Deps carries the shared infrastructure the agents are built on.
type Deps struct {
	Local      provider.TextGenerator
	Paid       provider.TextGenerator
	Embeddings *search.EmbeddingStore
	Accountant *budget.Accountant
	Driver     vcs.Driver
	Scripts    *vcs.ScriptRunner
	Logger     *slog.Logger
}

// NewRegistry wires the six production agents.
func NewRegistry(cfg config.AppConfig, deps Deps) *agent.Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := agent.NewRegistry()
	r.Register(NewFilter(deps.Local,
		WithFilterModel(cfg.LocalModel()),
		WithFilterLogger(logger),
	))
	r.Register(NewClusterer(deps.Embeddings,
		WithMaxQueryResults(cfg.MaxQueryResults()),
		WithClustererLogger(logger),
	))
	r.Register(NewPrioritiser(deps.Local, deps.Accountant,
		WithPrioritiserModel(cfg.LocalModel()),
		WithPrioritiserLogger(logger),
	))
	r.Register(NewWriter(deps.Paid, deps.Accountant, cfg.RepoPath(),
		WithWriterModel(cfg.WriterModel()),
		WithWriterContractFile(cfg.ContractFile()),
		WithWriterLogger(logger),
	))
	r.Register(NewReviewer(deps.Paid, deps.Accountant, cfg.RepoPath(),
		WithReviewerModel(cfg.ReviewerModel()),
		WithReviewerContractFile(cfg.ContractFile()),
		WithReviewerLogger(logger),
	))
	r.Register(NewDeployer(deps.Driver, deps.Scripts, cfg.RepoPath(),
		WithPipelineTimeout(cfg.PipelineTimeout()),
		WithDeployTimeout(cfg.DeployTimeout()),
		WithOutputTail(cfg.OutputTruncation()),
		WithDeployerLogger(logger),
	))
	return r
}

// NewDryRunRegistry wires the registry with the paid and deploy stages
// replaced by dry-run stand-ins. The local-model and embedding stages
// still run for real; they are free.
func NewDryRunRegistry(cfg config.AppConfig, deps Deps) *agent.Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := NewRegistry(cfg, deps)
	r.Register(NewDryRunWriter(cfg.RepoPath(), cfg.ContractFile(),
		cfg.WriterModel(), cfg.CostPerTokenGBP(), logger))
	r.Register(NewDryRunReviewer(cfg.RepoPath(), cfg.ContractFile(),
		cfg.ReviewerModel(), cfg.CostPerTokenGBP(), logger))
	r.Register(NewDryRunDeployer(logger))
	return r
}
