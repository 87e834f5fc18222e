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

// DefaultWriterMaxTokens caps the writer model's completion length.
const DefaultWriterMaxTokens = 4096

// Writer generates a change set for one task through the paid model.
// Every call is gated on the spending budget and its token usage is
// recorded against the ledger, including failed parses.
type Writer struct {
	generator    provider.TextGenerator
	accountant   *budget.Accountant
	repoPath     string
	contractFile string
	model        string
	maxTokens    int
	logger       *slog.Logger
}

// WriterOption is a functional option for Writer.
type WriterOption func(*Writer)

// WithWriterModel overrides the paid model.
func WithWriterModel(model string) WriterOption {
	return func(w *Writer) { w.model = model }
}

// WithWriterMaxTokens overrides the completion cap.
func WithWriterMaxTokens(n int) WriterOption {
	return func(w *Writer) { w.maxTokens = n }
}

// WithWriterContractFile overrides the contract file name.
func WithWriterContractFile(name string) WriterOption {
	return func(w *Writer) { w.contractFile = name }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger }
}

// NewWriter creates the write agent for the given target repository.
func NewWriter(generator provider.TextGenerator, accountant *budget.Accountant, repoPath string, opts ...WriterOption) *Writer {
	w := &Writer{
		generator:    generator,
		accountant:   accountant,
		repoPath:     repoPath,
		contractFile: "contract.md",
		maxTokens:    DefaultWriterMaxTokens,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the registry name.
func (w *Writer) Name() string { return agent.NameWrite }

// Run generates a change set for the task in input.Payload
// (change.Task). Reviewer comments from a prior attempt arrive through
// input.Feedback.
func (w *Writer) Run(ctx context.Context, input agent.Input) agent.Output {
	task, ok := input.Payload().(change.Task)
	if !ok {
		return agent.NewFailure("write input must be a task", 0)
	}

	if !w.accountant.Check().Allowed() {
		return agent.NewFailure("budget exhausted", 0)
	}

	system := fmt.Sprintf(writerSystemPrompt, readContract(w.repoPath, w.contractFile))
	user := buildWriterUserMessage(task, input.Feedback(), gatherSourceFiles(w.repoPath))

	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(system),
		provider.UserMessage(user),
	}).WithMaxTokens(w.maxTokens)
	if w.model != "" {
		req = req.WithModel(w.model)
	}

	resp, err := w.generator.ChatCompletion(ctx, req)
	if err != nil {
		return agent.NewFailure(fmt.Sprintf("writer model call failed: %v", err), 0)
	}

	tokens := resp.Usage().TotalTokens()
	if _, err := w.accountant.Record(tokens); err != nil {
		w.logger.Warn("failed to record writer spend", "error", err)
	}

	cs, err := parseWriterResponse(resp.Content())
	if err != nil {
		w.logger.Warn("writer returned unparseable output", "error", err)
		return agent.NewFailure(fmt.Sprintf("failed to parse writer response: %v", err), tokens).
			WithData(resp.Content())
	}

	w.logger.Info("change set generated",
		"changes", len(cs.Changes()), "tokens", tokens, "summary", cs.Summary())
	return agent.NewOutput(cs, tokens)
}
