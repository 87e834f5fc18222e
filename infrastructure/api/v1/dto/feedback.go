// Package dto holds the request and response shapes for the v1 API.
package dto

import (
	"time"

	"github.com/lostworld/plateau/domain/feedback"
)

// FeedbackCreateRequest is the body of POST /api/feedback.
type FeedbackCreateRequest struct {
	Content string `json:"content"`
}

// FeedbackSubmitResponse acknowledges a submission.
type FeedbackSubmitResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
}

// FeedbackResponse is the full representation of a submission.
type FeedbackResponse struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	AgentNotes string    `json:"agent_notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FeedbackListResponse wraps a page of submissions.
type FeedbackListResponse struct {
	Data []FeedbackResponse `json:"data"`
}

// NewFeedbackResponse maps a domain submission to its response shape.
func NewFeedbackResponse(sub feedback.Submission) FeedbackResponse {
	return FeedbackResponse{
		ID:         sub.ID(),
		Reference:  sub.Reference(),
		Content:    sub.Content(),
		Status:     string(sub.Status()),
		AgentNotes: sub.Notes(),
		CreatedAt:  sub.CreatedAt(),
		UpdatedAt:  sub.UpdatedAt(),
	}
}

// NewFeedbackSubmitResponse maps a domain submission to its
// acknowledgement shape.
func NewFeedbackSubmitResponse(sub feedback.Submission) FeedbackSubmitResponse {
	return FeedbackSubmitResponse{
		Reference: sub.Reference(),
		Status:    string(sub.Status()),
		Notes:     sub.Notes(),
	}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string           `json:"status"`
	Feedback map[string]int64 `json:"feedback,omitempty"`
}
