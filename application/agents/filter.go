package agents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/infrastructure/provider"
)

// SafeFallbackReason is recorded when the local model is unreachable and
// the filter fails open.
const SafeFallbackReason = "local model unavailable, defaulted to safe"

// Filter classifies incoming feedback through the local model. It fails
// open: if the model is unreachable the submission is treated as safe.
type Filter struct {
	generator provider.TextGenerator
	model     string
	logger    *slog.Logger
}

// FilterOption is a functional option for Filter.
type FilterOption func(*Filter)

// WithFilterModel overrides the local chat model.
func WithFilterModel(model string) FilterOption {
	return func(f *Filter) { f.model = model }
}

// WithFilterLogger sets the logger.
func WithFilterLogger(logger *slog.Logger) FilterOption {
	return func(f *Filter) { f.logger = logger }
}

// NewFilter creates the filter agent.
func NewFilter(generator provider.TextGenerator, opts ...FilterOption) *Filter {
	f := &Filter{
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the registry name.
func (f *Filter) Name() string { return agent.NameFilter }

// Run classifies the submission content in input.Payload.
func (f *Filter) Run(ctx context.Context, input agent.Input) agent.Output {
	content, ok := input.Payload().(string)
	if !ok {
		return agent.NewFailure("filter input must be a string", 0)
	}

	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(filterSystemPrompt),
		provider.UserMessage(content),
	})
	if f.model != "" {
		req = req.WithModel(f.model)
	}

	resp, err := f.generator.ChatCompletion(ctx, req)
	if err != nil {
		f.logger.Warn("filter model unavailable, failing open", "error", err)
		return agent.NewOutput(change.NewFilterVerdict(change.FilterSafe, SafeFallbackReason), 0)
	}

	verdict := parseFilterVerdict(resp.Content())
	f.logger.Debug("feedback filtered",
		"decision", string(verdict.Decision()),
		"tokens", resp.Usage().TotalTokens(),
	)
	return agent.NewOutput(verdict, resp.Usage().TotalTokens())
}

// parseFilterVerdict extracts the verdict line from the model response.
// Anything that does not parse as an explicit rejection is safe.
func parseFilterVerdict(text string) change.FilterVerdict {
	const prefix = "verdict:"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
			continue
		}
		rest := strings.TrimSpace(line[len(prefix):])
		decision, reason, _ := strings.Cut(rest, "|")
		if strings.EqualFold(strings.TrimSpace(decision), "reject") {
			reason = strings.TrimSpace(reason)
			if reason == "" {
				reason = "rejected by safety filter"
			}
			return change.NewFilterVerdict(change.FilterReject, reason)
		}
		return change.NewFilterVerdict(change.FilterSafe, "")
	}
	return change.NewFilterVerdict(change.FilterSafe, "")
}
