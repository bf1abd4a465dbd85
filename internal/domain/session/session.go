// Package session describes academy sessions as seen by the status-sync core:
// the closed set of session kinds, lifecycle states and per-academy timing settings.
// Sessions are owned by the scheduling subsystem and are read-only here.
package session

import (
	"context"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/shared"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = shared.NewDomainError("session", "Find", shared.ErrNotFound, "session not found")

// Type distinguishes one-to-one, group and trial sessions.
type Type string

const (
	TypeIndividual Type = "individual"
	TypeGroup      Type = "group"
	TypeTrial      Type = "trial"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusReady     Status = "ready"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusAbsent    Status = "absent"
)

// IsJoinable reports whether participants may still enter the room.
func (s Status) IsJoinable() bool {
	switch s {
	case StatusScheduled, StatusReady, StatusOngoing:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the session will not change state again.
func (s Status) IsFinal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusAbsent:
		return true
	default:
		return false
	}
}

// Session is a scheduled meeting of one of the academy's session kinds.
type Session struct {
	ID              string
	Kind            Kind
	Type            Type
	Status          Status
	TrialRequestID  *string
	AcademyID       *string
	Title           *string
	CourseTitle     string
	ScheduledAt     time.Time
	DurationMinutes int
	RoomName        *string
	UpdatedAt       time.Time
}

// IsTrial reports whether this is a trial session.
func (s *Session) IsTrial() bool {
	return s.Type == TypeTrial
}

// LinkedTrialRequestID returns the trial request id, if any.
func (s *Session) LinkedTrialRequestID() (string, bool) {
	if s.TrialRequestID == nil || *s.TrialRequestID == "" {
		return "", false
	}
	return *s.TrialRequestID, true
}

// EndsAt returns the scheduled end of the session.
func (s *Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// ChangeCursor is a position in the (UpdatedAt, ID) order of session changes.
// The zero value sorts before every session.
type ChangeCursor struct {
	UpdatedAt time.Time
	ID        string
}

// CursorOf returns the position of s.
func CursorOf(s *Session) ChangeCursor {
	return ChangeCursor{UpdatedAt: s.UpdatedAt, ID: s.ID}
}

// Before reports whether c sorts strictly before other.
func (c ChangeCursor) Before(other ChangeCursor) bool {
	if !c.UpdatedAt.Equal(other.UpdatedAt) {
		return c.UpdatedAt.Before(other.UpdatedAt)
	}
	return c.ID < other.ID
}

// Repository определяет операции чтения сессий.
type Repository interface {
	// GetByID возвращает сессию по ID.
	// Возвращает ErrSessionNotFound, если сессия не найдена.
	GetByID(ctx context.Context, id string) (*Session, error)

	// ListTrialSessionsChangedAfter возвращает пробные сессии, расположенные
	// строго после курсора, в порядке (updated_at, id).
	ListTrialSessionsChangedAfter(ctx context.Context, after ChangeCursor, limit int) ([]*Session, error)
}
