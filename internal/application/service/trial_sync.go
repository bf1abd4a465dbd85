package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/session"
	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/internal/domain/trial"
	"github.com/alem-hub/academy-core/pkg/logger"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRIAL REQUEST SYNC SERVICE
// Keeps trial requests in step with the trial session booked for them.
// ══════════════════════════════════════════════════════════════════════════════

// SchedulingInfo describes the session booked for a trial request.
type SchedulingInfo struct {
	SessionID       string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          session.Status
	CanJoin         bool
	RoomName        *string
}

// TrialRequestSyncService mirrors session state onto trial requests.
type TrialRequestSyncService struct {
	requests trial.Repository
	sessions session.Repository
	settings *SessionSettingsService
	clock    timeutil.Clock
	logger   *slog.Logger
}

// NewTrialRequestSyncService creates a new TrialRequestSyncService.
// settings may be nil; joining windows then use the default early-join minutes.
func NewTrialRequestSyncService(
	requests trial.Repository,
	sessions session.Repository,
	settings *SessionSettingsService,
	clock timeutil.Clock,
	log *slog.Logger,
) *TrialRequestSyncService {
	return &TrialRequestSyncService{
		requests: requests,
		sessions: sessions,
		settings: settings,
		clock:    timeutil.OrSystem(clock),
		logger:   logger.OrDefault(log).With(logger.Component("trial_sync")),
	}
}

// linkedRequestID returns the trial request id for trial sessions that carry one.
func linkedRequestID(s *session.Session) (string, bool) {
	if s == nil || !s.IsTrial() {
		return "", false
	}
	return s.LinkedTrialRequestID()
}

// SyncStatus maps the session status onto its trial request. Repeating the
// call with an unchanged session writes nothing.
func (svc *TrialRequestSyncService) SyncStatus(ctx context.Context, s *session.Session) error {
	if s == nil || !s.IsTrial() {
		return nil
	}

	requestID, ok := s.LinkedTrialRequestID()
	if !ok {
		svc.logger.Warn("trial session has no linked trial request", logger.SessionID(s.ID))
		return nil
	}

	req, err := svc.requests.GetByID(ctx, requestID)
	if err != nil {
		if shared.IsNotFound(err) {
			svc.logger.Warn("trial request not found for sync",
				logger.SessionID(s.ID), logger.TrialRequestID(requestID))
			return nil
		}
		return fmt.Errorf("load trial request %s: %w", requestID, err)
	}

	return svc.syncRequest(ctx, s, req)
}

func (svc *TrialRequestSyncService) syncRequest(ctx context.Context, s *session.Session, req *trial.Request) error {
	next, ok := trial.StatusForSession(s.Status)
	if !ok || next == req.Status {
		return nil
	}

	old := req.Status
	now := svc.clock.Now()
	if err := svc.requests.UpdateStatus(ctx, req.ID, next, now); err != nil {
		return fmt.Errorf("update trial request %s status: %w", req.ID, err)
	}
	req.TransitionTo(next, now)

	svc.logger.Info("trial request status synced",
		logger.TrialRequestID(req.ID),
		logger.SessionID(s.ID),
		slog.String("old_status", string(old)),
		slog.String("new_status", string(next)),
	)
	return nil
}

// LinkSessionToRequest records the session on its trial request unless a
// session is already linked, then syncs the status. A dangling trial request
// reference is logged and left alone.
func (svc *TrialRequestSyncService) LinkSessionToRequest(ctx context.Context, s *session.Session) error {
	requestID, ok := linkedRequestID(s)
	if !ok {
		return nil
	}

	req, err := svc.requests.GetByID(ctx, requestID)
	if err != nil {
		if shared.IsNotFound(err) {
			svc.logger.Error("trial session references missing trial request",
				logger.SessionID(s.ID), logger.TrialRequestID(requestID))
			return nil
		}
		return fmt.Errorf("load trial request %s: %w", requestID, err)
	}

	if !req.HasSession() {
		now := svc.clock.Now()
		linked, err := svc.requests.LinkSession(ctx, req.ID, s.ID, now)
		if err != nil {
			return fmt.Errorf("link session to trial request %s: %w", req.ID, err)
		}
		if linked {
			req.LinkSession(s.ID, now)
			svc.logger.Info("trial session linked to request",
				logger.TrialRequestID(req.ID), logger.SessionID(s.ID))
		}
	}

	return svc.syncRequest(ctx, s, req)
}

// CompleteTrialRequest completes the linked trial request with an optional
// rating (1..5) and feedback.
func (svc *TrialRequestSyncService) CompleteTrialRequest(ctx context.Context, s *session.Session, rating *int, feedback *string) error {
	requestID, ok := linkedRequestID(s)
	if !ok {
		return nil
	}

	req, err := svc.requests.GetByID(ctx, requestID)
	if err != nil {
		if shared.IsNotFound(err) {
			svc.logger.Error("trial session references missing trial request",
				logger.SessionID(s.ID), logger.TrialRequestID(requestID))
			return nil
		}
		return fmt.Errorf("load trial request %s: %w", requestID, err)
	}

	old := req.Status
	if err := req.Complete(rating, feedback, svc.clock.Now()); err != nil {
		return err
	}
	if err := svc.requests.SaveCompletion(ctx, req); err != nil {
		return fmt.Errorf("save trial request %s completion: %w", req.ID, err)
	}

	attrs := []any{
		logger.TrialRequestID(req.ID),
		logger.SessionID(s.ID),
		slog.String("old_status", string(old)),
	}
	if rating != nil {
		attrs = append(attrs, slog.Int("rating", *rating))
	}
	svc.logger.Info("trial request completed", attrs...)
	return nil
}

// GetSchedulingInfo returns the booked session's schedule, or nil when the
// request has no session yet.
func (svc *TrialRequestSyncService) GetSchedulingInfo(ctx context.Context, req *trial.Request) (*SchedulingInfo, error) {
	if req == nil || !req.HasSession() {
		return nil, nil
	}

	s, err := svc.sessions.GetByID(ctx, *req.TrialSessionID)
	if err != nil {
		if shared.IsNotFound(err) {
			svc.logger.Warn("linked trial session not found",
				logger.TrialRequestID(req.ID), logger.SessionID(*req.TrialSessionID))
			return nil, nil
		}
		return nil, fmt.Errorf("load trial session %s: %w", *req.TrialSessionID, err)
	}

	earlyJoin := session.DefaultEarlyJoinMinutes
	if svc.settings != nil {
		earlyJoin = svc.settings.EarlyJoinMinutes(ctx, s)
	}

	now := svc.clock.Now()
	opensAt := s.ScheduledAt.Add(-timeutil.Minutes(earlyJoin))

	return &SchedulingInfo{
		SessionID:       s.ID,
		ScheduledAt:     s.ScheduledAt,
		DurationMinutes: s.DurationMinutes,
		Status:          s.Status,
		CanJoin:         s.Status.IsJoinable() && timeutil.Within(now, opensAt, s.EndsAt()),
		RoomName:        s.RoomName,
	}, nil
}
