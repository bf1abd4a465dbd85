package session

import (
	"context"

	"github.com/alem-hub/academy-core/internal/domain/shared"
)

// Timing defaults applied when an academy has no explicit value.
const (
	DefaultPreparationMinutes   = 10
	DefaultBufferMinutes        = 5
	DefaultLateToleranceMinutes = 15
	DefaultEarlyJoinMinutes     = 15

	// MaxFutureHoursOngoing bounds how far ahead an ongoing-view query looks.
	MaxFutureHoursOngoing = 2
	// MaxFutureHours bounds upcoming-session queries.
	MaxFutureHours = 24
)

// ErrSettingsNotFound is returned when an academy has no settings row.
var ErrSettingsNotFound = shared.NewDomainError("session", "FindSettings", shared.ErrNotFound, "academy settings not found")

// AcademySettings holds per-academy session timing overrides. Nil fields fall
// back to the package defaults.
type AcademySettings struct {
	AcademyID            string `json:"academy_id"`
	PreparationMinutes   *int   `json:"preparation_minutes,omitempty"`
	BufferMinutes        *int   `json:"buffer_minutes,omitempty"`
	LateToleranceMinutes *int   `json:"late_tolerance_minutes,omitempty"`
	EarlyJoinMinutes     *int   `json:"early_join_minutes,omitempty"`
}

func orDefault(v *int, def int) int {
	if v == nil || *v < 0 {
		return def
	}
	return *v
}

// Preparation returns minutes before start when the room is prepared.
func (a *AcademySettings) Preparation() int {
	if a == nil {
		return DefaultPreparationMinutes
	}
	return orDefault(a.PreparationMinutes, DefaultPreparationMinutes)
}

// Buffer returns minutes kept free after a session ends.
func (a *AcademySettings) Buffer() int {
	if a == nil {
		return DefaultBufferMinutes
	}
	return orDefault(a.BufferMinutes, DefaultBufferMinutes)
}

// LateTolerance returns minutes after start before a participant counts as late.
func (a *AcademySettings) LateTolerance() int {
	if a == nil {
		return DefaultLateToleranceMinutes
	}
	return orDefault(a.LateToleranceMinutes, DefaultLateToleranceMinutes)
}

// EarlyJoin returns minutes before start during which joining is allowed.
func (a *AcademySettings) EarlyJoin() int {
	if a == nil {
		return DefaultEarlyJoinMinutes
	}
	return orDefault(a.EarlyJoinMinutes, DefaultEarlyJoinMinutes)
}

// SettingsRepository loads academy settings.
type SettingsRepository interface {
	// GetByAcademyID returns ErrSettingsNotFound when the academy has no row.
	GetByAcademyID(ctx context.Context, academyID string) (*AcademySettings, error)
}
