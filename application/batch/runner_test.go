package batch_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostworld/plateau/application/batch"
	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/domain/feedback"
	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/persistence"
	"github.com/lostworld/plateau/infrastructure/provider"
	"github.com/lostworld/plateau/infrastructure/search"
	"github.com/lostworld/plateau/internal/database"
	"github.com/lostworld/plateau/internal/testdb"
)

// scriptedAgent returns canned outputs in sequence, repeating the last.
type scriptedAgent struct {
	name    string
	outputs []agent.Output
	inputs  []agent.Input
}

func (s *scriptedAgent) Name() string { return s.name }

func (s *scriptedAgent) Run(ctx context.Context, input agent.Input) agent.Output {
	s.inputs = append(s.inputs, input)
	idx := len(s.inputs) - 1
	if idx >= len(s.outputs) {
		idx = len(s.outputs) - 1
	}
	return s.outputs[idx]
}

// passthroughCluster puts every reference into a single cluster.
type passthroughCluster struct{}

func (passthroughCluster) Name() string { return agent.NameCluster }

func (passthroughCluster) Run(ctx context.Context, input agent.Input) agent.Output {
	refs, _ := input.Payload().([]string)
	if len(refs) == 0 {
		return agent.NewOutput([]change.Cluster{}, 0)
	}
	docs := make([]string, len(refs))
	for i, ref := range refs {
		docs[i] = "feedback " + ref
	}
	return agent.NewOutput([]change.Cluster{change.NewCluster(refs, docs)}, 0)
}

// taskPerCluster emits one task per cluster without a model call.
type taskPerCluster struct{}

func (taskPerCluster) Name() string { return agent.NamePrioritise }

func (taskPerCluster) Run(ctx context.Context, input agent.Input) agent.Output {
	clusters, _ := input.Payload().([]change.Cluster)
	tasks := make([]change.Task, 0, len(clusters))
	for _, c := range clusters {
		tasks = append(tasks, change.NewTask(c, "improve the plateau"))
	}
	return agent.NewOutput(tasks, 10)
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	vectors := make([][]float64, len(req.Texts()))
	for i := range vectors {
		vectors[i] = []float64{1, 0}
	}
	return provider.NewEmbeddingResponse(vectors, provider.NewUsage(0, 0, 0)), nil
}

type fixture struct {
	runner     *batch.Runner
	store      feedback.Store
	embeddings *search.EmbeddingStore
	accountant *budget.Accountant
	registry   *agent.Registry
	db         database.Database
}

func approvedChangeSet() change.ChangeSet {
	return change.NewChangeSet("add rivers", "requested",
		[]change.FileChange{change.NewFileChange("sim/rivers.py", change.ActionCreate, "pass\n")})
}

func approveOutput() agent.Output {
	return agent.NewOutput(change.NewReviewVerdict(change.VerdictApprove, nil, nil), 50)
}

func rejectOutput(comment string) agent.Output {
	return agent.NewOutput(change.NewReviewVerdict(change.VerdictReject, []string{comment}, nil), 50)
}

func newFixture(t *testing.T, writer, reviewer, deployer agent.Agent, opts ...batch.RunnerOption) *fixture {
	t.Helper()
	db := testdb.New(t)
	store := persistence.NewSubmissionStore(db)
	embeddings := search.NewEmbeddingStore(fixedEmbedder{}, search.NewSQLiteVectorStore(db))
	accountant := budget.NewAccountant(filepath.Join(t.TempDir(), "budget.json"))

	registry := agent.NewRegistry()
	registry.Register(passthroughCluster{})
	registry.Register(taskPerCluster{})
	registry.Register(writer)
	registry.Register(reviewer)
	registry.Register(deployer)

	return &fixture{
		runner:     batch.NewRunner(registry, store, embeddings, accountant, opts...),
		store:      store,
		embeddings: embeddings,
		accountant: accountant,
		registry:   registry,
		db:         db,
	}
}

func (f *fixture) seed(t *testing.T, contents ...string) []feedback.Submission {
	t.Helper()
	subs := make([]feedback.Submission, 0, len(contents))
	for _, content := range contents {
		sub, err := feedback.NewSubmission(content)
		require.NoError(t, err)
		saved, err := f.store.Save(context.Background(), sub)
		require.NoError(t, err)
		subs = append(subs, saved)
	}
	return subs
}

func (f *fixture) status(t *testing.T, ref string) feedback.Status {
	t.Helper()
	sub, err := f.store.FindOne(context.Background(), feedback.WithReference(ref))
	require.NoError(t, err)
	return sub.Status()
}

func TestRunner_HappyPathMarksDone(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{agent.NewOutput(approvedChangeSet(), 1000)}}
	reviewer := &scriptedAgent{name: agent.NameReview, outputs: []agent.Output{approveOutput()}}
	deployer := &scriptedAgent{name: agent.NameDeploy,
		outputs: []agent.Output{agent.NewOutput(change.NewDeployResult("agent/abc123", true, ""), 0)}}
	f := newFixture(t, writer, reviewer, deployer)
	subs := f.seed(t, "more water", "add rivers")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TasksAttempted())
	assert.Equal(t, 1, summary.TasksCompleted())
	assert.Zero(t, summary.TasksFailed())
	assert.Equal(t, 10+1000+50, summary.TotalTokens())

	for _, sub := range subs {
		assert.Equal(t, feedback.StatusDone, f.status(t, sub.Reference()))
	}

	require.Len(t, summary.Details(), 1)
	detail := summary.Details()[0]
	assert.Equal(t, change.OutcomeDone, detail.Outcome())
	assert.Equal(t, "agent/abc123", detail.Branch())
	assert.Empty(t, detail.Note())
}

func TestRunner_MergedButNotDeployedNoted(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{agent.NewOutput(approvedChangeSet(), 100)}}
	reviewer := &scriptedAgent{name: agent.NameReview, outputs: []agent.Output{approveOutput()}}
	deployer := &scriptedAgent{name: agent.NameDeploy,
		outputs: []agent.Output{agent.NewOutput(change.NewDeployResult("agent/abc123", false, "restart failed"), 0)}}
	f := newFixture(t, writer, reviewer, deployer)
	f.seed(t, "more water")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Details(), 1)
	assert.Equal(t, change.OutcomeDone, summary.Details()[0].Outcome())
	assert.Equal(t, "merged but not deployed", summary.Details()[0].Note())
}

func TestRunner_ReviewerCommentsFeedNextAttempt(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{
			agent.NewOutput(approvedChangeSet(), 100),
			agent.NewOutput(approvedChangeSet(), 100),
		}}
	reviewer := &scriptedAgent{name: agent.NameReview,
		outputs: []agent.Output{rejectOutput("rivers must stay in bounds"), approveOutput()}}
	deployer := &scriptedAgent{name: agent.NameDeploy,
		outputs: []agent.Output{agent.NewOutput(change.NewDeployResult("agent/abc123", true, ""), 0)}}
	f := newFixture(t, writer, reviewer, deployer)
	f.seed(t, "more water")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TasksCompleted())

	require.Len(t, writer.inputs, 2)
	assert.Empty(t, writer.inputs[0].Feedback())
	assert.Equal(t, []string{"rivers must stay in bounds"}, writer.inputs[1].Feedback())
}

func TestRunner_RejectionAfterRetriesReturnsToPending(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{agent.NewOutput(approvedChangeSet(), 100)}}
	reviewer := &scriptedAgent{name: agent.NameReview,
		outputs: []agent.Output{rejectOutput("still broken")}}
	deployer := &scriptedAgent{name: agent.NameDeploy}
	f := newFixture(t, writer, reviewer, deployer)
	subs := f.seed(t, "more water")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TasksFailed())
	assert.Zero(t, summary.TasksCompleted())
	assert.Len(t, writer.inputs, 1+batch.DefaultMaxRetries)
	assert.Empty(t, deployer.inputs)

	assert.Equal(t, feedback.StatusPending, f.status(t, subs[0].Reference()))
	sub, err := f.store.FindOne(context.Background(), feedback.WithReference(subs[0].Reference()))
	require.NoError(t, err)
	assert.Equal(t, "Review rejected after 3 attempt(s): still broken", sub.Notes())

	require.Len(t, summary.Details(), 1)
	assert.Equal(t, change.OutcomeReviewRejected, summary.Details()[0].Outcome())
}

func TestRunner_DeployFailureReturnsToPending(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{agent.NewOutput(approvedChangeSet(), 100)}}
	reviewer := &scriptedAgent{name: agent.NameReview, outputs: []agent.Output{approveOutput()}}
	deployer := &scriptedAgent{name: agent.NameDeploy,
		outputs: []agent.Output{agent.NewFailure("pipeline failed (exit 1)", 0)}}
	f := newFixture(t, writer, reviewer, deployer)
	subs := f.seed(t, "more water")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TasksFailed())
	assert.Equal(t, feedback.StatusPending, f.status(t, subs[0].Reference()))

	sub, err := f.store.FindOne(context.Background(), feedback.WithReference(subs[0].Reference()))
	require.NoError(t, err)
	assert.Equal(t, "Deploy failed: pipeline failed (exit 1)", sub.Notes())
	assert.Equal(t, change.OutcomeDeployFailed, summary.Details()[0].Outcome())
}

func TestRunner_WriteFailureAbandonsTask(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{agent.NewFailure("writer model call failed: rate limited", 0)}}
	reviewer := &scriptedAgent{name: agent.NameReview, outputs: []agent.Output{approveOutput()}}
	deployer := &scriptedAgent{name: agent.NameDeploy}
	f := newFixture(t, writer, reviewer, deployer)
	subs := f.seed(t, "more water")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	// A failed write call carries no reviewer feedback, so retrying
	// would only resend the same prompt.
	assert.Equal(t, 1, summary.TasksFailed())
	assert.Zero(t, summary.TasksCompleted())
	assert.Len(t, writer.inputs, 1)
	assert.Empty(t, reviewer.inputs)
	assert.Empty(t, deployer.inputs)

	assert.Equal(t, feedback.StatusPending, f.status(t, subs[0].Reference()))
	sub, err := f.store.FindOne(context.Background(), feedback.WithReference(subs[0].Reference()))
	require.NoError(t, err)
	assert.Equal(t, "Review rejected after 1 attempt(s): writer model call failed: rate limited", sub.Notes())
}

func TestRunner_ReviewFailureAbandonsTask(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{agent.NewOutput(approvedChangeSet(), 100)}}
	reviewer := &scriptedAgent{name: agent.NameReview,
		outputs: []agent.Output{agent.NewFailure("reviewer model call failed: rate limited", 0)}}
	deployer := &scriptedAgent{name: agent.NameDeploy}
	f := newFixture(t, writer, reviewer, deployer)
	subs := f.seed(t, "more water")

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TasksFailed())
	assert.Len(t, writer.inputs, 1)
	assert.Len(t, reviewer.inputs, 1)
	assert.Empty(t, deployer.inputs)

	assert.Equal(t, feedback.StatusPending, f.status(t, subs[0].Reference()))
	sub, err := f.store.FindOne(context.Background(), feedback.WithReference(subs[0].Reference()))
	require.NoError(t, err)
	assert.Equal(t, "Review rejected after 1 attempt(s): reviewer model call failed: rate limited", sub.Notes())
}

func TestRunner_BudgetExhaustedSkipsBatch(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite}
	reviewer := &scriptedAgent{name: agent.NameReview}
	deployer := &scriptedAgent{name: agent.NameDeploy}
	f := newFixture(t, writer, reviewer, deployer)
	f.seed(t, "more water")

	_, err := f.accountant.Record(10_000_000)
	require.NoError(t, err)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TasksAttempted())
	assert.Empty(t, writer.inputs)
	assert.Zero(t, summary.BudgetRemaining())
}

func TestRunner_NoPendingFeedback(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite}
	reviewer := &scriptedAgent{name: agent.NameReview}
	deployer := &scriptedAgent{name: agent.NameDeploy}
	f := newFixture(t, writer, reviewer, deployer)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TasksAttempted())
	assert.Empty(t, summary.Details())
}

func TestRunner_BackfillStoresMissingEmbeddings(t *testing.T) {
	writer := &scriptedAgent{name: agent.NameWrite,
		outputs: []agent.Output{agent.NewOutput(approvedChangeSet(), 100)}}
	reviewer := &scriptedAgent{name: agent.NameReview, outputs: []agent.Output{approveOutput()}}
	deployer := &scriptedAgent{name: agent.NameDeploy,
		outputs: []agent.Output{agent.NewOutput(change.NewDeployResult("agent/abc123", true, ""), 0)}}
	f := newFixture(t, writer, reviewer, deployer)
	subs := f.seed(t, "more water")

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	records, err := f.embeddings.Get(context.Background(), []string{subs[0].Reference()})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
