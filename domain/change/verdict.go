package change

// FilterDecision is the safety filter's verdict on a submission.
type FilterDecision string

// FilterDecision values.
const (
	FilterSafe   FilterDecision = "safe"
	FilterReject FilterDecision = "reject"
)

// FilterVerdict is the output of the safety filter.
type FilterVerdict struct {
	decision FilterDecision
	reason   string
}

// NewFilterVerdict creates a FilterVerdict.
func NewFilterVerdict(decision FilterDecision, reason string) FilterVerdict {
	return FilterVerdict{decision: decision, reason: reason}
}

// Decision returns the filter decision.
func (v FilterVerdict) Decision() FilterDecision { return v.decision }

// Reason returns the rejection reason (empty when safe).
func (v FilterVerdict) Reason() string { return v.reason }

// Safe returns true if the submission passed the filter.
func (v FilterVerdict) Safe() bool { return v.decision == FilterSafe }

// Verdict is the reviewer's decision on a change set.
type Verdict string

// Verdict values.
const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// CoerceVerdict maps any raw verdict string onto the known set.
// Anything other than "approve" is treated as a rejection.
func CoerceVerdict(raw string) Verdict {
	if Verdict(raw) == VerdictApprove {
		return VerdictApprove
	}
	return VerdictReject
}

// Issue is a single reviewer finding tied to a file.
type Issue struct {
	file        string
	description string
}

// NewIssue creates an Issue.
func NewIssue(file, description string) Issue {
	return Issue{file: file, description: description}
}

// File returns the path the issue concerns.
func (i Issue) File() string { return i.file }

// Description returns the issue description.
func (i Issue) Description() string { return i.description }

// ReviewVerdict is the output of the review stage.
type ReviewVerdict struct {
	verdict  Verdict
	comments []string
	issues   []Issue
}

// NewReviewVerdict creates a ReviewVerdict.
func NewReviewVerdict(verdict Verdict, comments []string, issues []Issue) ReviewVerdict {
	rv := ReviewVerdict{verdict: verdict}
	rv.comments = make([]string, len(comments))
	copy(rv.comments, comments)
	rv.issues = make([]Issue, len(issues))
	copy(rv.issues, issues)
	return rv
}

// Verdict returns the decision.
func (r ReviewVerdict) Verdict() Verdict { return r.verdict }

// Approved returns true if the change set was approved.
func (r ReviewVerdict) Approved() bool { return r.verdict == VerdictApprove }

// Comments returns the actionable reviewer comments.
func (r ReviewVerdict) Comments() []string {
	out := make([]string, len(r.comments))
	copy(out, r.comments)
	return out
}

// Issues returns the per-file findings.
func (r ReviewVerdict) Issues() []Issue {
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}
