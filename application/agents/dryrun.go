package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
)

// Conservative output-token estimates used for dry-run cost projections.
const (
	EstimatedOutputTokensWriter   = 500
	EstimatedOutputTokensReviewer = 300
)

// DryRunWriter builds the real writer prompt but returns a mock change
// set instead of calling the paid back-end. Building the prompt for
// real validates contract reading and source-file gathering.
type DryRunWriter struct {
	repoPath     string
	contractFile string
	model        string
	costPerToken float64
	logger       *slog.Logger
}

// NewDryRunWriter creates the dry-run write agent.
func NewDryRunWriter(repoPath, contractFile, model string, costPerToken float64, logger *slog.Logger) *DryRunWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunWriter{
		repoPath:     repoPath,
		contractFile: contractFile,
		model:        model,
		costPerToken: costPerToken,
		logger:       logger,
	}
}

// Name returns the registry name.
func (w *DryRunWriter) Name() string { return agent.NameWrite }

// Run builds the writer prompt and returns a mock change set.
func (w *DryRunWriter) Run(ctx context.Context, input agent.Input) agent.Output {
	task, ok := input.Payload().(change.Task)
	if !ok {
		return agent.NewFailure("write input must be a task", 0)
	}

	system := fmt.Sprintf(writerSystemPrompt, readContract(w.repoPath, w.contractFile))
	user := buildWriterUserMessage(task, input.Feedback(), gatherSourceFiles(w.repoPath))

	inputTokens := estimateTokens(system + user)
	totalTokens := inputTokens + EstimatedOutputTokensWriter
	w.logger.Info("[dry run] writer call skipped",
		"model", w.model,
		"input_tokens", inputTokens,
		"system_chars", len(system),
		"user_chars", len(user),
		"estimated_cost_gbp", fmt.Sprintf("%.4f", float64(totalTokens)*w.costPerToken),
	)

	summary := task.Summary()
	if len(summary) > 100 {
		summary = summary[:100]
	}
	cs := change.NewChangeSet(
		"[dry run] mock change for: "+summary,
		"[dry run] no real model call was made",
		[]change.FileChange{
			change.NewFileChange("README.md", change.ActionModify, "# Auto-generated change (dry-run mock)\n"),
		},
	)
	return agent.NewOutput(cs, totalTokens).
		WithMessage(fmt.Sprintf("[dry run] mock: 1 file change, ~%d tokens estimated", totalTokens))
}

// DryRunReviewer builds the real reviewer prompt and auto-approves.
type DryRunReviewer struct {
	repoPath     string
	contractFile string
	model        string
	costPerToken float64
	logger       *slog.Logger
}

// NewDryRunReviewer creates the dry-run review agent.
func NewDryRunReviewer(repoPath, contractFile, model string, costPerToken float64, logger *slog.Logger) *DryRunReviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunReviewer{
		repoPath:     repoPath,
		contractFile: contractFile,
		model:        model,
		costPerToken: costPerToken,
		logger:       logger,
	}
}

// Name returns the registry name.
func (r *DryRunReviewer) Name() string { return agent.NameReview }

// Run builds the reviewer prompt and approves without a model call.
func (r *DryRunReviewer) Run(ctx context.Context, input agent.Input) agent.Output {
	cs, ok := input.Payload().(change.ChangeSet)
	if !ok {
		return agent.NewFailure("review input must be a change set", 0)
	}

	if cs.Empty() {
		verdict := change.NewReviewVerdict(change.VerdictApprove,
			[]string{"[dry run] no changes to review"}, nil)
		return agent.NewOutput(verdict, 0).
			WithMessage("[dry run] no changes to review, auto-approved")
	}

	system := fmt.Sprintf(reviewerSystemPrompt, readContract(r.repoPath, r.contractFile))
	user := buildReviewerUserMessage(cs)

	inputTokens := estimateTokens(system + user)
	totalTokens := inputTokens + EstimatedOutputTokensReviewer
	r.logger.Info("[dry run] reviewer call skipped",
		"model", r.model,
		"input_tokens", inputTokens,
		"estimated_cost_gbp", fmt.Sprintf("%.4f", float64(totalTokens)*r.costPerToken),
	)

	verdict := change.NewReviewVerdict(change.VerdictApprove,
		[]string{"[dry run] auto-approved (no real model call)"}, nil)
	return agent.NewOutput(verdict, totalTokens).
		WithMessage(fmt.Sprintf("[dry run] mock review: approved, ~%d tokens estimated", totalTokens))
}

// DryRunDeployer logs the deployment plan without touching the
// repository or git.
type DryRunDeployer struct {
	logger *slog.Logger
}

// NewDryRunDeployer creates the dry-run deploy agent.
func NewDryRunDeployer(logger *slog.Logger) *DryRunDeployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunDeployer{logger: logger}
}

// Name returns the registry name.
func (d *DryRunDeployer) Name() string { return agent.NameDeploy }

// Run logs the steps the real deployer would take.
func (d *DryRunDeployer) Run(ctx context.Context, input agent.Input) agent.Output {
	cs, ok := input.Payload().(change.ChangeSet)
	if !ok {
		return agent.NewFailure("deploy input must be a change set", 0)
	}

	summary := cs.Summary()
	if len(summary) > 80 {
		summary = summary[:80]
	}

	d.logger.Info("[dry run] deployer would perform these steps:")
	d.logger.Info("[dry run]   1. create branch agent/<hex>")
	for _, fc := range cs.Changes() {
		d.logger.Info(fmt.Sprintf("[dry run]   2. %s file: %s", fc.Action(), fc.Path()))
	}
	d.logger.Info("[dry run]   3. git add -A && git commit -m 'agent: " + summary + "'")
	d.logger.Info("[dry run]   4. run " + DefaultPipelineScript)
	d.logger.Info("[dry run]   5. merge to current branch (--no-ff)")
	d.logger.Info("[dry run]   6. run " + DefaultDeployScript)

	return agent.NewOutput(change.NewDeployResult("agent/dry-run", false, ""), 0).
		WithMessage("[dry run] deployment skipped, logged steps only")
}

// interface checks
var (
	_ agent.Agent = (*Filter)(nil)
	_ agent.Agent = (*Clusterer)(nil)
	_ agent.Agent = (*Prioritiser)(nil)
	_ agent.Agent = (*Writer)(nil)
	_ agent.Agent = (*Reviewer)(nil)
	_ agent.Agent = (*Deployer)(nil)
	_ agent.Agent = (*DryRunWriter)(nil)
	_ agent.Agent = (*DryRunReviewer)(nil)
	_ agent.Agent = (*DryRunDeployer)(nil)
)
