// Package service contains the application services of the academy core:
// exchange-rate resolution, course-progress caching, trial-request status
// synchronization and per-academy session settings.
//
// Every service receives its cache, clock and logger explicitly.
package service

import (
	"time"

	"github.com/alem-hub/academy-core/internal/domain/currency"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE KEYS
// ══════════════════════════════════════════════════════════════════════════════

const (
	PrefixExchangeRate    = "exchange_rate:"
	PrefixCourseProgress  = "course_progress:"
	PrefixAcademySettings = "academy_settings:"
)

// Default TTLs.
const (
	DefaultRateTTL     = time.Hour
	DefaultProgressTTL = time.Hour
	DefaultSettingsTTL = time.Hour
	DefaultRateTimeout = 5 * time.Second
)

// ExchangeRateKey returns "exchange_rate:{FROM}:{TO}".
func ExchangeRateKey(p currency.Pair) string {
	return PrefixExchangeRate + p.From + ":" + p.To
}

// CourseProgressKey returns "course_progress:{course}:{student}".
func CourseProgressKey(courseID, studentID string) string {
	return PrefixCourseProgress + courseID + ":" + studentID
}

// AcademySettingsKey returns "academy_settings:{academy}".
func AcademySettingsKey(academyID string) string {
	return PrefixAcademySettings + academyID
}
