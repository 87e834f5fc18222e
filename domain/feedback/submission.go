// Package feedback holds the feedback submission domain model and its
// store interface.
package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Content length bounds for a submission.
const (
	MinContentLength = 1
	MaxContentLength = 2000
)

// Errors returned by the domain model.
var (
	ErrEmptyContent      = errors.New("submission content is empty")
	ErrContentTooLong    = errors.New("submission content exceeds maximum length")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Submission is a single piece of free-text user feedback moving through
// the pipeline.
type Submission struct {
	id        int64
	reference string
	content   string
	status    Status
	notes     string
	createdAt time.Time
	updatedAt time.Time
}

// NewSubmission creates a pending Submission from raw content.
// Content is trimmed and validated against the length bounds.
func NewSubmission(content string) (Submission, error) {
	content = strings.TrimSpace(content)
	if len(content) < MinContentLength {
		return Submission{}, ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return Submission{}, fmt.Errorf("%w: %d > %d", ErrContentTooLong, len(content), MaxContentLength)
	}
	now := time.Now().UTC()
	return Submission{
		content:   content,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// NewSubmissionFull creates a Submission with all fields (used by the store).
func NewSubmissionFull(
	id int64,
	reference string,
	content string,
	status Status,
	notes string,
	createdAt, updatedAt time.Time,
) Submission {
	return Submission{
		id:        id,
		reference: reference,
		content:   content,
		status:    status,
		notes:     notes,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the database identifier (0 before the first save).
func (s Submission) ID() int64 { return s.id }

// Reference returns the public reference, e.g. "LW-007".
func (s Submission) Reference() string { return s.reference }

// Content returns the feedback text.
func (s Submission) Content() string { return s.content }

// Status returns the lifecycle status.
func (s Submission) Status() Status { return s.status }

// Notes returns the agent notes attached to the submission.
func (s Submission) Notes() string { return s.notes }

// CreatedAt returns when the submission was received.
func (s Submission) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the submission was last modified.
func (s Submission) UpdatedAt() time.Time { return s.updatedAt }

// AssignReference returns a copy with the public reference assigned.
// The reference is assigned once at insert and never changes.
func (s Submission) AssignReference(ref string) Submission {
	if s.reference == "" {
		s.reference = ref
	}
	return s
}

// WithNotes returns a copy with the agent notes replaced.
func (s Submission) WithNotes(notes string) Submission {
	s.notes = notes
	s.updatedAt = time.Now().UTC()
	return s
}

// TransitionTo returns a copy in the given status, or an error if the
// transition is not allowed by the lifecycle.
func (s Submission) TransitionTo(next Status) (Submission, error) {
	if !s.status.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, next)
	}
	s.status = next
	s.updatedAt = time.Now().UTC()
	return s, nil
}

// FormatReference renders a numeric ID as a public reference.
// IDs past 999 widen naturally.
func FormatReference(id int64) string {
	return fmt.Sprintf("LW-%03d", id)
}
