// Package trial models trial-lesson requests and how they follow the state of
// the trial session booked for them.
package trial

import (
	"time"

	"github.com/alem-hub/academy-core/internal/domain/shared"
)

var (
	// ErrTrialRequestNotFound is returned when a trial request id is unknown.
	ErrTrialRequestNotFound = shared.NewDomainError("trial", "Find", shared.ErrNotFound, "trial request not found")

	// ErrInvalidRating is returned for a rating outside 1..5.
	ErrInvalidRating = shared.NewDomainError("trial", "Complete", shared.ErrValueOutOfRange, "rating must be between 1 and 5")
)

// Status is the lifecycle state of a trial request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
	StatusRejected  Status = "rejected"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Request is a prospective student's request for a trial lesson.
type Request struct {
	ID             string
	AcademyID      string
	StudentID      string
	Status         Status
	TrialSessionID *string
	Rating         *int
	Feedback       *string
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasSession reports whether a trial session has been linked.
func (r *Request) HasSession() bool {
	return r.TrialSessionID != nil && *r.TrialSessionID != ""
}

// LinkSession sets the trial session id unless one is already set.
// Returns false when the request already had a session.
func (r *Request) LinkSession(sessionID string, now time.Time) bool {
	if r.HasSession() {
		return false
	}
	r.TrialSessionID = &sessionID
	r.UpdatedAt = now
	return true
}

// TransitionTo moves the request to next. Returns false when already there.
func (r *Request) TransitionTo(next Status, now time.Time) bool {
	if r.Status == next {
		return false
	}
	r.Status = next
	r.UpdatedAt = now
	return true
}

// Complete marks the request completed with optional rating and feedback.
func (r *Request) Complete(rating *int, feedback *string, now time.Time) error {
	if rating != nil && (*rating < MinRating || *rating > MaxRating) {
		return ErrInvalidRating
	}

	r.Status = StatusCompleted
	if rating != nil {
		v := *rating
		r.Rating = &v
	}
	if feedback != nil {
		v := *feedback
		r.Feedback = &v
	}
	completedAt := now
	r.CompletedAt = &completedAt
	r.UpdatedAt = now
	return nil
}
