package feedback

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubmission_TrimsAndDefaults(t *testing.T) {
	sub, err := NewSubmission("  add more dinosaurs  ")
	require.NoError(t, err)

	assert.Equal(t, "add more dinosaurs", sub.Content())
	assert.Equal(t, StatusPending, sub.Status())
	assert.Empty(t, sub.Reference())
	assert.Zero(t, sub.ID())
	assert.False(t, sub.CreatedAt().IsZero())
}

func TestNewSubmission_RejectsEmpty(t *testing.T) {
	_, err := NewSubmission("   ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestNewSubmission_RejectsTooLong(t *testing.T) {
	_, err := NewSubmission(strings.Repeat("x", MaxContentLength+1))
	assert.ErrorIs(t, err, ErrContentTooLong)
}

func TestNewSubmission_AcceptsMaxLength(t *testing.T) {
	sub, err := NewSubmission(strings.Repeat("x", MaxContentLength))
	require.NoError(t, err)
	assert.Len(t, sub.Content(), MaxContentLength)
}

func TestAssignReference_OnlyOnce(t *testing.T) {
	sub, err := NewSubmission("feedback")
	require.NoError(t, err)

	sub = sub.AssignReference("LW-001")
	sub = sub.AssignReference("LW-999")
	assert.Equal(t, "LW-001", sub.Reference())
}

func TestTransitionTo_AllowedPaths(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusDone, false},
		{StatusInProgress, StatusDone, true},
		{StatusInProgress, StatusPending, true},
		{StatusInProgress, StatusRejected, false},
		{StatusDone, StatusPending, false},
		{StatusRejected, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			sub := NewSubmissionFull(1, "LW-001", "feedback", tt.from, "", time.Now().UTC(), time.Now().UTC())
			next, err := sub.TransitionTo(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, next.Status())
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, next.Status())
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDone.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
}

func TestFormatReference(t *testing.T) {
	assert.Equal(t, "LW-001", FormatReference(1))
	assert.Equal(t, "LW-042", FormatReference(42))
	assert.Equal(t, "LW-999", FormatReference(999))
	assert.Equal(t, "LW-1000", FormatReference(1000))
}

func TestWithNotes_UpdatesTimestamp(t *testing.T) {
	sub, err := NewSubmission("feedback")
	require.NoError(t, err)

	noted := sub.WithNotes("rejected by filter")
	assert.Equal(t, "rejected by filter", noted.Notes())
	assert.False(t, noted.UpdatedAt().Before(sub.UpdatedAt()))
}
