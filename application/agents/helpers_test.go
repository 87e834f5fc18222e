package agents

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lostworld/plateau/infrastructure/budget"
	"github.com/lostworld/plateau/infrastructure/provider"
)

// fakeGenerator is a scripted TextGenerator. Responses are consumed in
// order; the last one repeats.
type fakeGenerator struct {
	responses []string
	usage     provider.Usage
	err       error
	requests  []provider.ChatCompletionRequest
}

func (f *fakeGenerator) ChatCompletion(ctx context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return provider.ChatCompletionResponse{}, f.err
	}
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return provider.NewChatCompletionResponse(f.responses[idx], "stop", f.usage), nil
}

func (f *fakeGenerator) lastUserMessage(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.requests)
	messages := f.requests[len(f.requests)-1].Messages()
	require.NotEmpty(t, messages)
	return messages[len(messages)-1].Content()
}

func newTestAccountant(t *testing.T, opts ...budget.AccountantOption) *budget.Accountant {
	t.Helper()
	path := filepath.Join(t.TempDir(), "budget.json")
	return budget.NewAccountant(path, opts...)
}

// exhaust spends past both caps so Allowed() goes false.
func exhaust(t *testing.T, a *budget.Accountant) {
	t.Helper()
	_, err := a.Record(10_000_000)
	require.NoError(t, err)
}
