package persistence

import (
	"github.com/lostworld/plateau/domain/feedback"
)

// submissionMapper maps between feedback.Submission and SubmissionModel.
type submissionMapper struct{}

// ToDomain converts a database model to a domain submission.
func (submissionMapper) ToDomain(m SubmissionModel) feedback.Submission {
	return feedback.NewSubmissionFull(
		m.ID,
		m.Reference,
		m.Content,
		feedback.Status(m.Status),
		m.AgentNotes,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

// ToModel converts a domain submission to a database model.
func (submissionMapper) ToModel(s feedback.Submission) SubmissionModel {
	return SubmissionModel{
		ID:         s.ID(),
		Reference:  s.Reference(),
		Content:    s.Content(),
		Status:     string(s.Status()),
		AgentNotes: s.Notes(),
		CreatedAt:  s.CreatedAt(),
		UpdatedAt:  s.UpdatedAt(),
	}
}
