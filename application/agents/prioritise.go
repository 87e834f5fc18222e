package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/provider"
)

// DefaultSummaryTokenEstimate is the projected token cost of one
// cluster summary, used for the per-cluster budget gate.
const DefaultSummaryTokenEstimate = 500

const prioritiserSystemPrompt = `You are a product manager for The Lost World Plateau, a bounded 2D ecosystem that evolves autonomously through user feedback.

You will be given a cluster of related user feedback. Write a single actionable task summary (1-2 sentences) that captures what the users are asking for. Describe the change to make, not the feedback itself.

Return ONLY the summary text. No preamble, no quotes, no bullet points.`

// Prioritiser turns clusters into ordered tasks, summarising each
// cluster through the local model. Summarisation failures never drop a
// task; the cluster falls back to a generic summary instead.
type Prioritiser struct {
	generator  provider.TextGenerator
	accountant *budget.Accountant
	model      string
	estTokens  int
	logger     *slog.Logger
}

// PrioritiserOption is a functional option for Prioritiser.
type PrioritiserOption func(*Prioritiser)

// WithPrioritiserModel overrides the local chat model.
func WithPrioritiserModel(model string) PrioritiserOption {
	return func(p *Prioritiser) { p.model = model }
}

// WithSummaryTokenEstimate overrides the per-summary token projection.
func WithSummaryTokenEstimate(n int) PrioritiserOption {
	return func(p *Prioritiser) { p.estTokens = n }
}

// WithPrioritiserLogger sets the logger.
func WithPrioritiserLogger(logger *slog.Logger) PrioritiserOption {
	return func(p *Prioritiser) { p.logger = logger }
}

// NewPrioritiser creates the prioritise agent.
func NewPrioritiser(generator provider.TextGenerator, accountant *budget.Accountant, opts ...PrioritiserOption) *Prioritiser {
	p := &Prioritiser{
		generator:  generator,
		accountant: accountant,
		estTokens:  DefaultSummaryTokenEstimate,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the registry name.
func (p *Prioritiser) Name() string { return agent.NamePrioritise }

// Run converts the clusters in input.Payload ([]change.Cluster) into
// tasks, one per cluster, keeping the input order (largest first as
// produced by the cluster stage). When the projected cost of the next
// summary exceeds the remaining daily budget the loop stops and the
// tasks produced so far are returned; unsummarised clusters stay
// pending for a later run.
func (p *Prioritiser) Run(ctx context.Context, input agent.Input) agent.Output {
	clusters, ok := input.Payload().([]change.Cluster)
	if !ok {
		return agent.NewFailure("prioritise input must be a cluster list", 0)
	}
	if len(clusters) == 0 {
		return agent.NewOutput([]change.Task{}, 0)
	}

	if !p.accountant.Check().Allowed() {
		p.logger.Info("budget exhausted, skipping prioritisation")
		return agent.NewOutput([]change.Task{}, 0).WithMessage("budget exhausted")
	}

	tokensUsed := 0
	tasks := make([]change.Task, 0, len(clusters))
	for _, cluster := range clusters {
		projected := float64(p.estTokens) * p.accountant.CostPerToken()
		if projected > p.accountant.Check().DailyRemaining() {
			p.logger.Info("daily budget too low for more summaries, stopping",
				"tasks", len(tasks), "clusters_left", len(clusters)-len(tasks))
			break
		}

		summary := fallbackSummary(cluster)
		generated, tokens, err := p.summariseCluster(ctx, cluster)
		if err != nil {
			p.logger.Warn("cluster summary failed, using fallback", "error", err)
		} else {
			tokensUsed += tokens
			if _, err := p.accountant.Record(tokens); err != nil {
				p.logger.Warn("failed to record summary spend", "error", err)
			}
			if generated != "" {
				summary = generated
			}
		}
		tasks = append(tasks, change.NewTask(cluster, summary))
	}

	p.logger.Info("tasks prioritised", "tasks", len(tasks), "tokens", tokensUsed)
	return agent.NewOutput(tasks, tokensUsed)
}

func (p *Prioritiser) summariseCluster(ctx context.Context, cluster change.Cluster) (string, int, error) {
	var b strings.Builder
	b.WriteString("User feedback cluster:\n")
	for _, doc := range cluster.Documents() {
		b.WriteString("- " + doc + "\n")
	}

	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(prioritiserSystemPrompt),
		provider.UserMessage(b.String()),
	})
	if p.model != "" {
		req = req.WithModel(p.model)
	}

	resp, err := p.generator.ChatCompletion(ctx, req)
	if err != nil {
		return "", 0, err
	}
	tokens := resp.Usage().TotalTokens()
	if tokens == 0 {
		tokens = p.estTokens
	}
	return strings.TrimSpace(resp.Content()), tokens, nil
}

func fallbackSummary(cluster change.Cluster) string {
	return fmt.Sprintf("Cluster of %d related feedback item(s)", cluster.Size())
}
