package change

// TaskOutcome is the final disposition of one task in a batch.
type TaskOutcome string

// TaskOutcome values.
const (
	OutcomeDone           TaskOutcome = "done"
	OutcomeDeployFailed   TaskOutcome = "deploy_failed"
	OutcomeReviewRejected TaskOutcome = "review_rejected"
)

// TaskDetail records what happened to one task.
type TaskDetail struct {
	summary    string
	outcome    TaskOutcome
	references []string
	branch     string
	note       string
}

// NewTaskDetail creates a TaskDetail.
func NewTaskDetail(summary string, outcome TaskOutcome, references []string) TaskDetail {
	d := TaskDetail{summary: summary, outcome: outcome}
	d.references = make([]string, len(references))
	copy(d.references, references)
	return d
}

// Summary returns the task summary.
func (d TaskDetail) Summary() string { return d.summary }

// Outcome returns the task disposition.
func (d TaskDetail) Outcome() TaskOutcome { return d.outcome }

// References returns the submission references the task covered.
func (d TaskDetail) References() []string {
	out := make([]string, len(d.references))
	copy(out, d.references)
	return out
}

// Branch returns the deployed feature branch name, if any.
func (d TaskDetail) Branch() string { return d.branch }

// Note returns the failure note, if any.
func (d TaskDetail) Note() string { return d.note }

// WithBranch returns a copy carrying the feature branch name.
func (d TaskDetail) WithBranch(branch string) TaskDetail {
	d.branch = branch
	return d
}

// WithNote returns a copy carrying a failure note.
func (d TaskDetail) WithNote(note string) TaskDetail {
	d.note = note
	return d
}

// BatchSummary is the report emitted at the end of a batch run.
type BatchSummary struct {
	tasksAttempted  int
	tasksCompleted  int
	tasksFailed     int
	totalTokens     int
	budgetRemaining float64
	details         []TaskDetail
}

// NewBatchSummary creates an empty BatchSummary.
func NewBatchSummary() BatchSummary {
	return BatchSummary{}
}

// TasksAttempted returns how many tasks were attempted.
func (s BatchSummary) TasksAttempted() int { return s.tasksAttempted }

// TasksCompleted returns how many tasks completed and deployed.
func (s BatchSummary) TasksCompleted() int { return s.tasksCompleted }

// TasksFailed returns how many tasks failed or were rejected.
func (s BatchSummary) TasksFailed() int { return s.tasksFailed }

// TotalTokens returns the sum of tokens reported by every agent run.
func (s BatchSummary) TotalTokens() int { return s.totalTokens }

// BudgetRemaining returns the daily budget left after the run, in GBP.
func (s BatchSummary) BudgetRemaining() float64 { return s.budgetRemaining }

// Details returns the per-task reports.
func (s BatchSummary) Details() []TaskDetail {
	out := make([]TaskDetail, len(s.details))
	copy(out, s.details)
	return out
}

// AddTokens returns a copy with tokens added to the running total.
func (s BatchSummary) AddTokens(tokens int) BatchSummary {
	s.totalTokens += tokens
	return s
}

// RecordAttempt returns a copy with the attempted count incremented.
func (s BatchSummary) RecordAttempt() BatchSummary {
	s.tasksAttempted++
	return s
}

// RecordDetail returns a copy with the detail appended and the
// completed or failed counter incremented from its outcome.
func (s BatchSummary) RecordDetail(detail TaskDetail) BatchSummary {
	if detail.Outcome() == OutcomeDone {
		s.tasksCompleted++
	} else {
		s.tasksFailed++
	}
	s.details = append(s.details[:len(s.details):len(s.details)], detail)
	return s
}

// WithBudgetRemaining returns a copy with the closing budget recorded.
func (s BatchSummary) WithBudgetRemaining(gbp float64) BatchSummary {
	s.budgetRemaining = gbp
	return s
}

// Report is the serialisable form of a BatchSummary.
type Report struct {
	TasksAttempted  int            `json:"tasks_attempted" yaml:"tasks_attempted"`
	TasksCompleted  int            `json:"tasks_completed" yaml:"tasks_completed"`
	TasksFailed     int            `json:"tasks_failed" yaml:"tasks_failed"`
	TotalTokens     int            `json:"total_tokens" yaml:"total_tokens"`
	BudgetRemaining float64        `json:"budget_remaining" yaml:"budget_remaining"`
	Details         []ReportDetail `json:"details" yaml:"details"`
}

// ReportDetail is the serialisable form of a TaskDetail.
type ReportDetail struct {
	Summary    string   `json:"summary" yaml:"summary"`
	Outcome    string   `json:"outcome" yaml:"outcome"`
	References []string `json:"references" yaml:"references"`
	Branch     string   `json:"branch,omitempty" yaml:"branch,omitempty"`
	Note       string   `json:"note,omitempty" yaml:"note,omitempty"`
}

// Report returns the serialisable form of the summary.
func (s BatchSummary) Report() Report {
	details := make([]ReportDetail, len(s.details))
	for i, d := range s.details {
		details[i] = ReportDetail{
			Summary:    d.Summary(),
			Outcome:    string(d.Outcome()),
			References: d.References(),
			Branch:     d.Branch(),
			Note:       d.Note(),
		}
	}
	return Report{
		TasksAttempted:  s.tasksAttempted,
		TasksCompleted:  s.tasksCompleted,
		TasksFailed:     s.tasksFailed,
		TotalTokens:     s.totalTokens,
		BudgetRemaining: s.budgetRemaining,
		Details:         details,
	}
}
