package persistence

import (
	"context"
	"fmt"

	"github.com/lostworld/plateau/domain/feedback"
	"github.com/lostworld/plateau/domain/repository"
	"github.com/lostworld/plateau/internal/database"
	"gorm.io/gorm"
)

// SubmissionStore implements feedback.Store on top of GORM.
type SubmissionStore struct {
	database.Repository[feedback.Submission, SubmissionModel]
	db database.Database
}

// Compile-time interface check.
var _ feedback.Store = (*SubmissionStore)(nil)

// NewSubmissionStore creates a new SubmissionStore.
func NewSubmissionStore(db database.Database) *SubmissionStore {
	return &SubmissionStore{
		Repository: database.NewRepository[feedback.Submission, SubmissionModel](
			db, submissionMapper{}, "submission",
		),
		db: db,
	}
}

// Save inserts a new submission, assigning its ID and public reference.
// The reference is derived from max(id)+1 inside a transaction so that
// concurrent inserts cannot collide.
func (s *SubmissionStore) Save(ctx context.Context, submission feedback.Submission) (feedback.Submission, error) {
	model := s.Mapper().ToModel(submission)
	model.ID = 0

	err := s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		var maxID int64
		if err := tx.Model(&SubmissionModel{}).
			Select("COALESCE(MAX(id), 0)").
			Scan(&maxID).Error; err != nil {
			return fmt.Errorf("next submission id: %w", err)
		}
		model.ID = maxID + 1
		model.Reference = feedback.FormatReference(model.ID)
		return tx.Create(&model).Error
	})
	if err != nil {
		return feedback.Submission{}, fmt.Errorf("save submission: %w", err)
	}

	return s.Mapper().ToDomain(model), nil
}

// Update persists changes to an existing submission.
func (s *SubmissionStore) Update(ctx context.Context, submission feedback.Submission) (feedback.Submission, error) {
	if submission.ID() == 0 {
		return feedback.Submission{}, fmt.Errorf("update submission: missing id")
	}
	model := s.Mapper().ToModel(submission)
	result := s.db.Session(ctx).Save(&model)
	if result.Error != nil {
		return feedback.Submission{}, fmt.Errorf("update submission: %w", result.Error)
	}
	return s.Mapper().ToDomain(model), nil
}

// FindByReference retrieves a submission by its public reference.
func (s *SubmissionStore) FindByReference(ctx context.Context, ref string) (feedback.Submission, error) {
	return s.FindOne(ctx, feedback.WithReference(ref))
}

// Pending retrieves all pending submissions ordered by creation time
// ascending, the order the batch processes them in.
func (s *SubmissionStore) Pending(ctx context.Context) ([]feedback.Submission, error) {
	return s.Find(ctx,
		feedback.WithStatus(feedback.StatusPending),
		repository.WithOrderAsc("created_at"),
	)
}

// Stranded retrieves submissions left in_progress by a previous run.
func (s *SubmissionStore) Stranded(ctx context.Context) ([]feedback.Submission, error) {
	return s.Find(ctx,
		feedback.WithStatus(feedback.StatusInProgress),
		repository.WithOrderAsc("created_at"),
	)
}
