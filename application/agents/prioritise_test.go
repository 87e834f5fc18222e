package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/provider"
)

func testClusters() []change.Cluster {
	return []change.Cluster{
		change.NewCluster([]string{"LW-001", "LW-002"}, []string{"more trees", "denser forest"}),
		change.NewCluster([]string{"LW-003"}, []string{"add rivers"}),
	}
}

func TestPrioritiser_SummarisesEachCluster(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{"Increase vegetation density.", "Add river features."},
		usage:     provider.NewUsage(100, 20, 120),
	}
	accountant := newTestAccountant(t)
	prioritiser := NewPrioritiser(gen, accountant)

	out := prioritiser.Run(context.Background(), agent.NewInput(testClusters()))
	require.True(t, out.Success())

	tasks, ok := out.Data().([]change.Task)
	require.True(t, ok)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Increase vegetation density.", tasks[0].Summary())
	assert.Equal(t, []string{"LW-001", "LW-002"}, tasks[0].References())
	assert.Equal(t, "Add river features.", tasks[1].Summary())
	assert.Equal(t, 240, out.TokensUsed())

	// Local summary spend is recorded against the budget.
	assert.InDelta(t, 240*1.2e-5, accountant.Check().DailySpent(), 1e-9)
}

func TestPrioritiser_BudgetExhaustedReturnsNoTasks(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"unused"}}
	accountant := newTestAccountant(t)
	exhaust(t, accountant)
	prioritiser := NewPrioritiser(gen, accountant)

	out := prioritiser.Run(context.Background(), agent.NewInput(testClusters()))
	require.True(t, out.Success())
	assert.Empty(t, out.Data().([]change.Task))
	assert.Equal(t, "budget exhausted", out.Message())
	assert.Empty(t, gen.requests)
}

func TestPrioritiser_LowDailyBudgetStopsBeforeSummarising(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"unused"}}
	// The projected summary cost exceeds what is left under the daily
	// cap, but the weekly window still allows the run. No task may be
	// emitted without budget for its summary.
	accountant := newTestAccountant(t)
	_, err := accountant.Record(160_000) // £1.92 spent, £0.08 daily left
	require.NoError(t, err)
	prioritiser := NewPrioritiser(gen, accountant, WithSummaryTokenEstimate(10_000))

	out := prioritiser.Run(context.Background(), agent.NewInput(testClusters()))
	require.True(t, out.Success())
	assert.Empty(t, out.Data().([]change.Task))
	assert.Empty(t, gen.requests)
}

func TestPrioritiser_MidRunBudgetStopKeepsEarlierTasks(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{"Increase vegetation density.", "unused"},
		usage:     provider.NewUsage(400, 100, 500),
	}
	// The first summary fits under the cap; recording its spend leaves
	// too little for the second.
	accountant := newTestAccountant(t, budget.WithDailyCap(0.01))
	prioritiser := NewPrioritiser(gen, accountant)

	out := prioritiser.Run(context.Background(), agent.NewInput(testClusters()))
	require.True(t, out.Success())

	tasks := out.Data().([]change.Task)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Increase vegetation density.", tasks[0].Summary())
	assert.Len(t, gen.requests, 1)
}

func TestPrioritiser_ModelFailureFallsBackWithoutDroppingTask(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	accountant := newTestAccountant(t)
	prioritiser := NewPrioritiser(gen, accountant)

	out := prioritiser.Run(context.Background(), agent.NewInput(testClusters()))
	require.True(t, out.Success())

	tasks := out.Data().([]change.Task)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Cluster of 2 related feedback item(s)", tasks[0].Summary())
	assert.Zero(t, accountant.Check().DailySpent())
}

func TestPrioritiser_EmptySummaryStillRecordsSpend(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{""},
		usage:     provider.NewUsage(100, 0, 100),
	}
	accountant := newTestAccountant(t)
	prioritiser := NewPrioritiser(gen, accountant)

	out := prioritiser.Run(context.Background(), agent.NewInput(testClusters()[:1]))
	require.True(t, out.Success())

	tasks := out.Data().([]change.Task)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Cluster of 2 related feedback item(s)", tasks[0].Summary())
	assert.InDelta(t, 100*1.2e-5, accountant.Check().DailySpent(), 1e-9)
}

func TestPrioritiser_EmptyClusters(t *testing.T) {
	prioritiser := NewPrioritiser(&fakeGenerator{responses: []string{"x"}}, newTestAccountant(t))

	out := prioritiser.Run(context.Background(), agent.NewInput([]change.Cluster{}))
	require.True(t, out.Success())
	assert.Empty(t, out.Data().([]change.Task))
}

func TestPrioritiser_BadPayloadFails(t *testing.T) {
	prioritiser := NewPrioritiser(&fakeGenerator{responses: []string{"x"}}, newTestAccountant(t))

	out := prioritiser.Run(context.Background(), agent.NewInput("nope"))
	assert.False(t, out.Success())
}
