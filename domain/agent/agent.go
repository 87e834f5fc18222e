// Package agent defines the uniform interface every pipeline stage
// implements, plus the registry that wires stages together.
package agent

import "context"

// Agent is a single pipeline stage. Implementations must not panic;
// operational failures are reported through Output.Success with a
// human-readable message.
type Agent interface {
	// Name returns the registry name of the agent.
	Name() string

	// Run executes the stage against the given input.
	Run(ctx context.Context, input Input) Output
}

// Input carries the payload for an agent run.
type Input struct {
	payload  any
	feedback []string
}

// NewInput creates an Input wrapping the given payload.
func NewInput(payload any) Input {
	return Input{payload: payload}
}

// Payload returns the stage-specific payload.
func (i Input) Payload() any { return i.payload }

// Feedback returns reviewer comments carried into a retry attempt.
func (i Input) Feedback() []string {
	out := make([]string, len(i.feedback))
	copy(out, i.feedback)
	return out
}

// WithFeedback returns a copy carrying reviewer comments for a retry.
func (i Input) WithFeedback(comments []string) Input {
	i.feedback = make([]string, len(comments))
	copy(i.feedback, comments)
	return i
}

// Output is the result of an agent run.
type Output struct {
	data       any
	success    bool
	message    string
	tokensUsed int
}

// NewOutput creates a successful Output.
func NewOutput(data any, tokensUsed int) Output {
	return Output{data: data, success: true, tokensUsed: tokensUsed}
}

// NewFailure creates a failed Output with a message.
func NewFailure(message string, tokensUsed int) Output {
	return Output{success: false, message: message, tokensUsed: tokensUsed}
}

// Data returns the stage-specific result payload.
func (o Output) Data() any { return o.data }

// Success returns true if the stage completed.
func (o Output) Success() bool { return o.success }

// Message returns the failure or status message.
func (o Output) Message() string { return o.message }

// TokensUsed returns the number of tokens consumed by the run.
// Tokens are recorded even when the run fails.
func (o Output) TokensUsed() int { return o.tokensUsed }

// WithMessage returns a copy with the message set.
func (o Output) WithMessage(msg string) Output {
	o.message = msg
	return o
}

// WithData returns a copy with the data payload set. Used by failed
// runs that still carry diagnostics.
func (o Output) WithData(data any) Output {
	o.data = data
	return o
}
