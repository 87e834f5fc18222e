package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	name string
}

func (s stubAgent) Name() string { return s.name }

func (s stubAgent) Run(ctx context.Context, input Input) Output {
	return NewOutput(s.name, 0)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAgent{name: NameFilter})
	r.Register(stubAgent{name: NameDeploy})

	a, err := r.Get(NameFilter)
	require.NoError(t, err)
	assert.Equal(t, NameFilter, a.Name())

	_, err = r.Get(NameWrite)
	assert.Error(t, err)
}

func TestRegistry_ReplaceSwapsStage(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAgent{name: NameWrite})

	replacement := stubAgent{name: NameWrite}
	r.Register(replacement)

	a, err := r.Get(NameWrite)
	require.NoError(t, err)
	out := a.Run(context.Background(), NewInput(nil))
	assert.Equal(t, NameWrite, out.Data())
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAgent{name: NameWrite})
	r.Register(stubAgent{name: NameCluster})
	r.Register(stubAgent{name: NameDeploy})

	assert.Equal(t, []string{NameCluster, NameDeploy, NameWrite}, r.Names())
}

func TestOutput_FailureCarriesData(t *testing.T) {
	out := NewFailure("boom", 7).WithData("diagnostics")
	assert.False(t, out.Success())
	assert.Equal(t, "boom", out.Message())
	assert.Equal(t, 7, out.TokensUsed())
	assert.Equal(t, "diagnostics", out.Data())
}

func TestInput_WithFeedbackCopies(t *testing.T) {
	comments := []string{"fix the loop"}
	input := NewInput("payload").WithFeedback(comments)
	comments[0] = "mutated"

	assert.Equal(t, []string{"fix the loop"}, input.Feedback())
}
