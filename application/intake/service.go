// Package intake handles feedback submission: validation, persistence,
// synchronous safety filtering, and best-effort embedding.
package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/domain/feedback"
	"github.com/lostworld/plateau/domain/repository"
	"github.com/lostworld/plateau/infrastructure/search"
)

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Service accepts and lists feedback submissions.
type Service struct {
	store      feedback.Store
	registry   *agent.Registry
	embeddings *search.EmbeddingStore
	logger     *slog.Logger
}

// ServiceOption is a functional option for Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates an intake Service.
func NewService(store feedback.Store, registry *agent.Registry, embeddings *search.EmbeddingStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		registry:   registry,
		embeddings: embeddings,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates, stores, and filters one piece of feedback. The
// filter runs synchronously; a rejected submission comes back with
// status rejected and the reason in its notes. Filter or embedding
// failures leave the submission pending so the next batch picks it up.
func (s *Service) Submit(ctx context.Context, content string) (feedback.Submission, error) {
	sub, err := feedback.NewSubmission(content)
	if err != nil {
		return feedback.Submission{}, err
	}

	saved, err := s.store.Save(ctx, sub)
	if err != nil {
		return feedback.Submission{}, fmt.Errorf("store submission: %w", err)
	}
	s.logger.Info("feedback received", "reference", saved.Reference())

	filter, err := s.registry.Get(agent.NameFilter)
	if err != nil {
		s.logger.Warn("filter agent missing, leaving submission pending", "error", err)
		return saved, nil
	}

	out := filter.Run(ctx, agent.NewInput(saved.Content()))
	if !out.Success() {
		s.logger.Warn("filter failed, leaving submission pending",
			"reference", saved.Reference(), "message", out.Message())
		return saved, nil
	}

	verdict, ok := out.Data().(change.FilterVerdict)
	if !ok {
		s.logger.Warn("filter returned unexpected payload, leaving submission pending",
			"reference", saved.Reference())
		return saved, nil
	}

	if !verdict.Safe() {
		rejected, err := saved.TransitionTo(feedback.StatusRejected)
		if err != nil {
			return saved, fmt.Errorf("reject submission: %w", err)
		}
		rejected = rejected.WithNotes(verdict.Reason())
		updated, err := s.store.Update(ctx, rejected)
		if err != nil {
			return saved, fmt.Errorf("reject submission: %w", err)
		}
		s.logger.Info("feedback rejected by filter",
			"reference", updated.Reference(), "reason", verdict.Reason())
		return updated, nil
	}

	if err := s.embeddings.Store(ctx, saved.Reference(), saved.Content()); err != nil {
		// The batch run backfills missing embeddings.
		s.logger.Warn("embedding failed, will backfill in next batch",
			"reference", saved.Reference(), "error", err)
	}
	return saved, nil
}

// ListQuery filters and paginates a submission listing.
type ListQuery struct {
	status feedback.Status
	skip   int
	limit  int
}

// NewListQuery creates a ListQuery with defaults applied.
func NewListQuery() ListQuery {
	return ListQuery{limit: DefaultListLimit}
}

// WithStatus returns a copy filtering by status.
func (q ListQuery) WithStatus(status feedback.Status) ListQuery {
	q.status = status
	return q
}

// WithSkip returns a copy skipping the first n results.
func (q ListQuery) WithSkip(n int) ListQuery {
	q.skip = n
	return q
}

// WithLimit returns a copy capping the result count.
func (q ListQuery) WithLimit(n int) ListQuery {
	q.limit = n
	return q
}

// Status returns the status filter (empty for all).
func (q ListQuery) Status() feedback.Status { return q.status }

// Skip returns the pagination offset.
func (q ListQuery) Skip() int { return q.skip }

// Limit returns the result cap.
func (q ListQuery) Limit() int { return q.limit }

// Validate checks the pagination bounds.
func (q ListQuery) Validate() error {
	if q.skip < 0 {
		return fmt.Errorf("skip must be >= 0, got %d", q.skip)
	}
	if q.limit < 1 || q.limit > MaxListLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxListLimit, q.limit)
	}
	if q.status != "" && !q.status.Valid() {
		return fmt.Errorf("unknown status %q", q.status)
	}
	return nil
}

// List returns submissions newest first, filtered and paginated by q.
func (s *Service) List(ctx context.Context, q ListQuery) ([]feedback.Submission, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	options := []repository.Option{
		feedback.NewestFirst(),
		repository.WithLimit(q.Limit()),
		repository.WithOffset(q.Skip()),
	}
	if q.Status() != "" {
		options = append(options, feedback.WithStatus(q.Status()))
	}
	return s.store.Find(ctx, options...)
}

// Get returns the submission with the given public reference.
func (s *Service) Get(ctx context.Context, reference string) (feedback.Submission, error) {
	return s.store.FindOne(ctx, feedback.WithReference(reference))
}

// Counts returns the number of submissions per status.
func (s *Service) Counts(ctx context.Context) (map[feedback.Status]int64, error) {
	counts := make(map[feedback.Status]int64, len(feedback.Statuses()))
	for _, status := range feedback.Statuses() {
		n, err := s.store.Count(ctx, feedback.WithStatus(status))
		if err != nil {
			return nil, fmt.Errorf("count %s submissions: %w", status, err)
		}
		counts[status] = n
	}
	return counts, nil
}
