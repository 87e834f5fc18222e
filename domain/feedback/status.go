package feedback

// Status represents the lifecycle state of a feedback submission.
type Status string

// Status values.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusRejected   Status = "rejected"
)

// Statuses returns every known status, in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusDone, StatusRejected}
}

// Valid returns true if s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusRejected
}

// CanTransitionTo reports whether the transition from s to next is allowed.
// Allowed transitions:
//
//	pending     -> in_progress, rejected
//	in_progress -> done, pending
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusRejected
	case StatusInProgress:
		return next == StatusDone || next == StatusPending
	}
	return false
}
