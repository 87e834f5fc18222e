// Package batch runs the change pipeline end to end: cluster pending
// feedback, prioritise it into tasks, and drive each task through the
// write, review, and deploy stages under the spending budget.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/domain/feedback"
	"github.com/lostworld/plateau/domain/repository"
	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/search"
)

// DefaultMaxRetries is the number of write retries after a rejected
// review, so a task gets 1+DefaultMaxRetries write attempts in total.
const DefaultMaxRetries = 2

// noteLimit caps reviewer comments carried into a submission note.
const noteLimit = 200

// Runner orchestrates one batch run.
type Runner struct {
	registry   *agent.Registry
	store      feedback.Store
	embeddings *search.EmbeddingStore
	accountant *budget.Accountant
	maxRetries int
	logger     *slog.Logger
}

// RunnerOption is a functional option for Runner.
type RunnerOption func(*Runner)

// WithMaxRetries sets the number of write retries after rejection.
func WithMaxRetries(n int) RunnerOption {
	return func(r *Runner) { r.maxRetries = n }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a batch Runner.
func NewRunner(
	registry *agent.Registry,
	store feedback.Store,
	embeddings *search.EmbeddingStore,
	accountant *budget.Accountant,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		registry:   registry,
		store:      store,
		embeddings: embeddings,
		accountant: accountant,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one batch and returns its summary. The summary is always
// valid; infrastructure failures end the run early rather than abort it.
func (r *Runner) Run(ctx context.Context) (change.BatchSummary, error) {
	summary := change.NewBatchSummary()

	r.warnStranded(ctx)

	budgetView := r.accountant.Check()
	if !budgetView.Allowed() {
		r.logger.Info("budget exhausted, skipping batch",
			"daily_remaining", budgetView.DailyRemaining(),
			"weekly_remaining", budgetView.WeeklyRemaining(),
		)
		return summary.WithBudgetRemaining(budgetView.DailyRemaining()), nil
	}

	pending, err := r.store.Find(ctx,
		feedback.WithStatus(feedback.StatusPending),
		repository.WithOrderAsc("created_at"),
	)
	if err != nil {
		return summary, fmt.Errorf("load pending feedback: %w", err)
	}
	if len(pending) == 0 {
		r.logger.Info("no pending feedback, nothing to do")
		return summary.WithBudgetRemaining(budgetView.DailyRemaining()), nil
	}
	r.logger.Info("batch started", "pending", len(pending))

	r.backfillEmbeddings(ctx, pending)

	clusters, ok := r.cluster(ctx, pending)
	if !ok {
		return summary.WithBudgetRemaining(r.accountant.Check().DailyRemaining()), nil
	}

	tasks, tokens := r.prioritise(ctx, clusters)
	summary = summary.AddTokens(tokens)
	if len(tasks) == 0 {
		r.logger.Info("no tasks to work on")
		return summary.WithBudgetRemaining(r.accountant.Check().DailyRemaining()), nil
	}

	byReference := make(map[string]feedback.Submission, len(pending))
	for _, sub := range pending {
		byReference[sub.Reference()] = sub
	}

	for _, task := range tasks {
		if !r.accountant.Check().Allowed() {
			r.logger.Info("budget exhausted mid-batch, stopping")
			break
		}
		summary = summary.RecordAttempt()
		detail, tokens := r.runTask(ctx, task, byReference)
		summary = summary.AddTokens(tokens).RecordDetail(detail)
	}

	closing := r.accountant.Check()
	summary = summary.WithBudgetRemaining(closing.DailyRemaining())
	r.logger.Info("batch finished",
		"attempted", summary.TasksAttempted(),
		"completed", summary.TasksCompleted(),
		"failed", summary.TasksFailed(),
		"total_tokens", summary.TotalTokens(),
		"budget_remaining", closing.DailyRemaining(),
	)
	return summary, nil
}

// warnStranded surfaces submissions left in_progress by a crashed run.
func (r *Runner) warnStranded(ctx context.Context) {
	stranded, err := r.store.Find(ctx, feedback.WithStatus(feedback.StatusInProgress))
	if err != nil || len(stranded) == 0 {
		return
	}
	refs := make([]string, len(stranded))
	for i, sub := range stranded {
		refs[i] = sub.Reference()
	}
	r.logger.Warn("submissions stranded in_progress from a previous run",
		"count", len(stranded), "references", refs)
}

// backfillEmbeddings makes sure every pending submission has a stored
// embedding. Failures are logged and skipped; clustering simply won't
// see those submissions this run.
func (r *Runner) backfillEmbeddings(ctx context.Context, pending []feedback.Submission) {
	refs := make([]string, len(pending))
	for i, sub := range pending {
		refs[i] = sub.Reference()
	}
	records, err := r.embeddings.Get(ctx, refs)
	have := make(map[string]bool, len(records))
	if err != nil {
		r.logger.Warn("embedding lookup failed, re-embedding everything", "error", err)
	} else {
		for _, rec := range records {
			have[rec.Reference()] = true
		}
	}

	for _, sub := range pending {
		if have[sub.Reference()] {
			continue
		}
		if err := r.embeddings.Store(ctx, sub.Reference(), sub.Content()); err != nil {
			r.logger.Warn("embedding backfill failed",
				"reference", sub.Reference(), "error", err)
		}
	}
}

func (r *Runner) cluster(ctx context.Context, pending []feedback.Submission) ([]change.Cluster, bool) {
	clusterer, err := r.registry.Get(agent.NameCluster)
	if err != nil {
		r.logger.Error("cluster agent missing", "error", err)
		return nil, false
	}
	refs := make([]string, len(pending))
	for i, sub := range pending {
		refs[i] = sub.Reference()
	}
	out := clusterer.Run(ctx, agent.NewInput(refs))
	if !out.Success() {
		r.logger.Error("clustering failed", "message", out.Message())
		return nil, false
	}
	clusters, _ := out.Data().([]change.Cluster)
	return clusters, true
}

func (r *Runner) prioritise(ctx context.Context, clusters []change.Cluster) ([]change.Task, int) {
	prioritiser, err := r.registry.Get(agent.NamePrioritise)
	if err != nil {
		r.logger.Error("prioritise agent missing", "error", err)
		return nil, 0
	}
	out := prioritiser.Run(ctx, agent.NewInput(clusters))
	if !out.Success() {
		r.logger.Error("prioritisation failed", "message", out.Message())
		return nil, out.TokensUsed()
	}
	tasks, _ := out.Data().([]change.Task)
	return tasks, out.TokensUsed()
}

// runTask drives one task through write, review, and deploy.
func (r *Runner) runTask(ctx context.Context, task change.Task, byReference map[string]feedback.Submission) (change.TaskDetail, int) {
	r.logger.Info("task started",
		"summary", task.Summary(), "references", task.References())
	r.transition(ctx, task, byReference, feedback.StatusInProgress, "")

	cs, comments, attempts, tokens, approved := r.writeAndReview(ctx, task)
	if !approved {
		note := fmt.Sprintf("Review rejected after %d attempt(s): %s",
			attempts, truncate(strings.Join(comments, "; "), noteLimit))
		r.transition(ctx, task, byReference, feedback.StatusPending, note)
		detail := change.NewTaskDetail(task.Summary(), change.OutcomeReviewRejected, task.References()).
			WithNote(note)
		return detail, tokens
	}

	deployer, err := r.registry.Get(agent.NameDeploy)
	if err != nil {
		note := "Deploy failed: deploy agent missing"
		r.transition(ctx, task, byReference, feedback.StatusPending, note)
		return change.NewTaskDetail(task.Summary(), change.OutcomeDeployFailed, task.References()).
			WithNote(note), tokens
	}

	out := deployer.Run(ctx, agent.NewInput(cs))
	tokens += out.TokensUsed()
	if !out.Success() {
		note := "Deploy failed: " + out.Message()
		r.transition(ctx, task, byReference, feedback.StatusPending, note)
		detail := change.NewTaskDetail(task.Summary(), change.OutcomeDeployFailed, task.References()).
			WithNote(note)
		return detail, tokens
	}

	result, _ := out.Data().(change.DeployResult)
	r.transition(ctx, task, byReference, feedback.StatusDone, cs.Summary())
	r.logger.Info("task done",
		"summary", cs.Summary(), "branch", result.Branch(), "deployed", result.Deployed())
	detail := change.NewTaskDetail(task.Summary(), change.OutcomeDone, task.References()).
		WithBranch(result.Branch())
	if !result.Deployed() {
		detail = detail.WithNote("merged but not deployed")
	}
	return detail, tokens
}

// writeAndReview runs the write/review loop for one task, returning
// the attempts made. Reviewer comments from a rejected attempt feed
// into the next write attempt; retrying is only worthwhile when the
// rejection carries feedback, so a failed write or review call ends
// the loop instead of burning the remaining attempts.
func (r *Runner) writeAndReview(ctx context.Context, task change.Task) (change.ChangeSet, []string, int, int, bool) {
	writer, err := r.registry.Get(agent.NameWrite)
	if err != nil {
		return change.ChangeSet{}, []string{err.Error()}, 0, 0, false
	}
	reviewer, err := r.registry.Get(agent.NameReview)
	if err != nil {
		return change.ChangeSet{}, []string{err.Error()}, 0, 0, false
	}

	tokens := 0
	var comments []string
	maxAttempts := 1 + r.maxRetries
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		input := agent.NewInput(task)
		if len(comments) > 0 {
			input = input.WithFeedback(comments)
		}

		writeOut := writer.Run(ctx, input)
		tokens += writeOut.TokensUsed()
		if !writeOut.Success() {
			r.logger.Warn("write failed, abandoning task",
				"attempt", attempt, "message", writeOut.Message())
			return change.ChangeSet{}, []string{writeOut.Message()}, attempt, tokens, false
		}
		cs, ok := writeOut.Data().(change.ChangeSet)
		if !ok {
			return change.ChangeSet{}, []string{"writer produced no change set"}, attempt, tokens, false
		}

		reviewOut := reviewer.Run(ctx, agent.NewInput(cs))
		tokens += reviewOut.TokensUsed()
		verdict, _ := reviewOut.Data().(change.ReviewVerdict)
		if !reviewOut.Success() {
			comments = verdict.Comments()
			if len(comments) == 0 && reviewOut.Message() != "" {
				comments = []string{reviewOut.Message()}
			}
			r.logger.Warn("review failed, abandoning task",
				"attempt", attempt, "message", reviewOut.Message())
			return change.ChangeSet{}, comments, attempt, tokens, false
		}
		if verdict.Approved() {
			r.logger.Info("change set approved", "attempt", attempt)
			return cs, nil, attempt, tokens, true
		}

		comments = verdict.Comments()
		r.logger.Info("change set rejected",
			"attempt", attempt, "comments", comments)
	}
	return change.ChangeSet{}, comments, maxAttempts, tokens, false
}

// transition moves every submission in the task to the given status.
// Invalid transitions and store errors are logged, not fatal.
func (r *Runner) transition(ctx context.Context, task change.Task, byReference map[string]feedback.Submission, status feedback.Status, note string) {
	for _, ref := range task.References() {
		sub, ok := byReference[ref]
		if !ok {
			continue
		}
		next, err := sub.TransitionTo(status)
		if err != nil {
			r.logger.Warn("invalid status transition",
				"reference", ref, "to", string(status), "error", err)
			continue
		}
		if note != "" {
			next = next.WithNotes(note)
		}
		saved, err := r.store.Update(ctx, next)
		if err != nil {
			r.logger.Warn("failed to update submission",
				"reference", ref, "error", err)
			continue
		}
		byReference[ref] = saved
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
