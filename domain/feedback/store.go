package feedback

import (
	"context"

	"github.com/lostworld/plateau/domain/repository"
)

// Store persists feedback submissions.
type Store interface {
	// Save inserts a new submission, assigning its ID and reference.
	Save(ctx context.Context, submission Submission) (Submission, error)

	// Update persists changes to an existing submission.
	Update(ctx context.Context, submission Submission) (Submission, error)

	// Find retrieves submissions matching the given options.
	Find(ctx context.Context, options ...repository.Option) ([]Submission, error)

	// FindOne retrieves a single submission matching the given options.
	FindOne(ctx context.Context, options ...repository.Option) (Submission, error)

	// Count returns the number of submissions matching the given options.
	Count(ctx context.Context, options ...repository.Option) (int64, error)
}

// WithStatus filters by the "status" column.
func WithStatus(status Status) repository.Option {
	return repository.WithCondition("status", string(status))
}

// WithStatusIn filters by the "status" column using IN.
func WithStatusIn(statuses []Status) repository.Option {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return repository.WithConditionIn("status", values)
}

// WithReference filters by the "reference" column.
func WithReference(ref string) repository.Option {
	return repository.WithCondition("reference", ref)
}

// NewestFirst orders by creation time descending.
func NewestFirst() repository.Option {
	return repository.WithOrderDesc("created_at")
}
