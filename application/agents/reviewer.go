package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/provider"
)

// DefaultReviewerMaxTokens caps the reviewer model's completion length.
const DefaultReviewerMaxTokens = 2048

// Reviewer judges a change set through the paid model. An empty change
// set is approved without a model call; an exhausted budget or an
// unparseable response both reject.
type Reviewer struct {
	generator    provider.TextGenerator
	accountant   *budget.Accountant
	repoPath     string
	contractFile string
	model        string
	maxTokens    int
	logger       *slog.Logger
}

// ReviewerOption is a functional option for Reviewer.
type ReviewerOption func(*Reviewer)

// WithReviewerModel overrides the paid model.
func WithReviewerModel(model string) ReviewerOption {
	return func(r *Reviewer) { r.model = model }
}

// WithReviewerMaxTokens overrides the completion cap.
func WithReviewerMaxTokens(n int) ReviewerOption {
	return func(r *Reviewer) { r.maxTokens = n }
}

// WithReviewerContractFile overrides the contract file name.
func WithReviewerContractFile(name string) ReviewerOption {
	return func(r *Reviewer) { r.contractFile = name }
}

// WithReviewerLogger sets the logger.
func WithReviewerLogger(logger *slog.Logger) ReviewerOption {
	return func(r *Reviewer) { r.logger = logger }
}

// NewReviewer creates the review agent for the given target repository.
func NewReviewer(generator provider.TextGenerator, accountant *budget.Accountant, repoPath string, opts ...ReviewerOption) *Reviewer {
	r := &Reviewer{
		generator:    generator,
		accountant:   accountant,
		repoPath:     repoPath,
		contractFile: "contract.md",
		maxTokens:    DefaultReviewerMaxTokens,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the registry name.
func (r *Reviewer) Name() string { return agent.NameReview }

// Run reviews the change set in input.Payload (change.ChangeSet).
func (r *Reviewer) Run(ctx context.Context, input agent.Input) agent.Output {
	cs, ok := input.Payload().(change.ChangeSet)
	if !ok {
		return agent.NewFailure("review input must be a change set", 0)
	}

	if cs.Empty() {
		verdict := change.NewReviewVerdict(change.VerdictApprove,
			[]string{"No changes proposed, nothing to review"}, nil)
		return agent.NewOutput(verdict, 0)
	}

	if !r.accountant.Check().Allowed() {
		verdict := change.NewReviewVerdict(change.VerdictReject,
			[]string{"Budget exhausted"}, nil)
		return agent.NewFailure("budget exhausted", 0).WithData(verdict)
	}

	system := fmt.Sprintf(reviewerSystemPrompt, readContract(r.repoPath, r.contractFile))
	user := buildReviewerUserMessage(cs)

	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(system),
		provider.UserMessage(user),
	}).WithMaxTokens(r.maxTokens)
	if r.model != "" {
		req = req.WithModel(r.model)
	}

	resp, err := r.generator.ChatCompletion(ctx, req)
	if err != nil {
		verdict := change.NewReviewVerdict(change.VerdictReject,
			[]string{"Review call failed"}, nil)
		return agent.NewFailure(fmt.Sprintf("reviewer model call failed: %v", err), 0).
			WithData(verdict)
	}

	tokens := resp.Usage().TotalTokens()
	if _, err := r.accountant.Record(tokens); err != nil {
		r.logger.Warn("failed to record reviewer spend", "error", err)
	}

	verdict, err := parseReviewerResponse(resp.Content())
	if err != nil {
		r.logger.Warn("reviewer returned unparseable output", "error", err)
		verdict = change.NewReviewVerdict(change.VerdictReject,
			[]string{"Failed to parse review"}, nil)
		return agent.NewFailure(fmt.Sprintf("failed to parse reviewer response: %v", err), tokens).
			WithData(verdict)
	}

	r.logger.Info("change set reviewed",
		"verdict", string(verdict.Verdict()), "issues", len(verdict.Issues()), "tokens", tokens)
	return agent.NewOutput(verdict, tokens)
}
