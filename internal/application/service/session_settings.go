package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/session"
	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION SETTINGS SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// SessionSettingsService resolves per-academy session timing and per-kind
// presentation traits.
type SessionSettingsService struct {
	settings session.SettingsRepository
	cache    shared.Cache
	logger   *slog.Logger
	ttl      time.Duration
}

// NewSessionSettingsService creates a new SessionSettingsService.
func NewSessionSettingsService(
	settings session.SettingsRepository,
	cache shared.Cache,
	log *slog.Logger,
	ttl time.Duration,
) *SessionSettingsService {
	if ttl <= 0 {
		ttl = DefaultSettingsTTL
	}
	return &SessionSettingsService{
		settings: settings,
		cache:    cache,
		logger:   logger.OrDefault(log).With(logger.Component("session_settings")),
		ttl:      ttl,
	}
}

// GetAcademySettings returns the settings of the session's academy, or nil
// when the session has no academy or the academy has no settings row.
// Lookup failures are logged and read as "no settings".
func (s *SessionSettingsService) GetAcademySettings(ctx context.Context, sess *session.Session) *session.AcademySettings {
	if sess == nil || sess.AcademyID == nil || *sess.AcademyID == "" {
		return nil
	}
	academyID := *sess.AcademyID
	key := AcademySettingsKey(academyID)

	if s.cache != nil {
		var cached session.AcademySettings
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached
		}
		if !shared.IsCacheMiss(err) {
			s.logger.Warn("academy settings cache read failed", logger.AcademyID(academyID), logger.Err(err))
		}
	}

	if s.settings == nil {
		return nil
	}

	settings, err := s.settings.GetByAcademyID(ctx, academyID)
	if err != nil {
		if !shared.IsNotFound(err) {
			s.logger.Error("academy settings lookup failed", logger.AcademyID(academyID), logger.Err(err))
		}
		return nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, settings, s.ttl); err != nil {
			s.logger.Warn("academy settings cache write failed", logger.AcademyID(academyID), logger.Err(err))
		}
	}
	return settings
}

// PreparationMinutes returns minutes before start when the room is prepared.
func (s *SessionSettingsService) PreparationMinutes(ctx context.Context, sess *session.Session) int {
	return s.GetAcademySettings(ctx, sess).Preparation()
}

// BufferMinutes returns minutes kept free after the session.
func (s *SessionSettingsService) BufferMinutes(ctx context.Context, sess *session.Session) int {
	return s.GetAcademySettings(ctx, sess).Buffer()
}

// LateToleranceMinutes returns minutes after start before a join counts as late.
func (s *SessionSettingsService) LateToleranceMinutes(ctx context.Context, sess *session.Session) int {
	return s.GetAcademySettings(ctx, sess).LateTolerance()
}

// EarlyJoinMinutes returns minutes before start when joining opens.
func (s *SessionSettingsService) EarlyJoinMinutes(ctx context.Context, sess *session.Session) int {
	return s.GetAcademySettings(ctx, sess).EarlyJoin()
}

// MaxFutureHours bounds upcoming-session lookups; ongoing views look less far ahead.
func (s *SessionSettingsService) MaxFutureHours(ongoing bool) int {
	if ongoing {
		return session.MaxFutureHoursOngoing
	}
	return session.MaxFutureHours
}

// SessionType returns the kind label: quran, academic, interactive or unknown.
func (s *SessionSettingsService) SessionType(sess *session.Session) string {
	return sess.Kind.Label()
}

// IsIndividual reports whether the session is one-to-one.
func (s *SessionSettingsService) IsIndividual(sess *session.Session) bool {
	return sess.IsIndividual()
}

// SessionTitle returns the display title for the session.
func (s *SessionSettingsService) SessionTitle(sess *session.Session) string {
	return sess.DisplayTitle()
}

// ClearCache drops one academy's cached settings, or all of them when
// academyID is empty. Cache failures are logged, not returned.
func (s *SessionSettingsService) ClearCache(ctx context.Context, academyID string) {
	if s.cache == nil {
		return
	}

	var err error
	if academyID == "" {
		err = s.cache.DeleteByPattern(ctx, PrefixAcademySettings+"*")
	} else {
		err = s.cache.Delete(ctx, AcademySettingsKey(academyID))
	}
	if err != nil {
		s.logger.Warn("academy settings cache invalidation failed",
			logger.AcademyID(academyID), logger.Err(err))
	}
}
