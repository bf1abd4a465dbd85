package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/progress"
	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/pkg/logger"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE PROGRESS SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// CourseProgressService computes and caches interactive-course progress.
type CourseProgressService struct {
	courses   progress.CourseRepository
	snapshots progress.SnapshotRepository
	cache     shared.Cache
	clock     timeutil.Clock
	logger    *slog.Logger
	ttl       time.Duration
}

// NewCourseProgressService creates a new CourseProgressService.
// A non-positive ttl selects DefaultProgressTTL.
func NewCourseProgressService(
	courses progress.CourseRepository,
	snapshots progress.SnapshotRepository,
	cache shared.Cache,
	clock timeutil.Clock,
	log *slog.Logger,
	ttl time.Duration,
) *CourseProgressService {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &CourseProgressService{
		courses:   courses,
		snapshots: snapshots,
		cache:     cache,
		clock:     timeutil.OrSystem(clock),
		logger:    logger.OrDefault(log).With(logger.Component("course_progress")),
		ttl:       ttl,
	}
}

// CalculateCourseProgress recomputes progress from the stored records,
// bypassing the cache. An unknown course returns progress.ErrCourseNotFound.
func (s *CourseProgressService) CalculateCourseProgress(ctx context.Context, courseID, studentID string) (*progress.Snapshot, error) {
	course, err := s.courses.LoadForStudent(ctx, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}
	return progress.Aggregate(course, studentID, s.clock.Now()), nil
}

// GetCourseProgress returns the cached snapshot, computing and caching it on a miss.
func (s *CourseProgressService) GetCourseProgress(ctx context.Context, courseID, studentID string) (*progress.Snapshot, error) {
	key := CourseProgressKey(courseID, studentID)

	if s.cache != nil {
		var cached progress.Snapshot
		err := s.cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			return &cached, nil
		case !shared.IsCacheMiss(err):
			s.logger.Warn("course progress cache read failed",
				logger.CourseID(courseID), logger.StudentID(studentID), logger.Err(err))
		}
	}

	snapshot, err := s.CalculateCourseProgress(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}

	s.store(ctx, snapshot)
	return snapshot, nil
}

// UpdateProgress invalidates the cached entry, recomputes from the stored
// records, re-populates the cache and persists the snapshot row. The cached
// value is never read, so a failed invalidation cannot leak a stale snapshot.
func (s *CourseProgressService) UpdateProgress(ctx context.Context, courseID, studentID string) (*progress.Snapshot, error) {
	s.ClearCache(ctx, courseID, studentID)

	snapshot, err := s.CalculateCourseProgress(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, snapshot)

	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save progress snapshot: %w", err)
	}

	s.logger.Info("course progress updated",
		logger.CourseID(courseID),
		logger.StudentID(studentID),
		slog.Int("completion_percentage", snapshot.CompletionPercentage),
		slog.Int("attendance_rate", snapshot.AttendanceRate),
	)
	return snapshot, nil
}

// ClearCache drops the cached snapshot without recomputing it. Cache failures
// are logged; the entry then simply expires with its TTL.
func (s *CourseProgressService) ClearCache(ctx context.Context, courseID, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, CourseProgressKey(courseID, studentID)); err != nil {
		s.logger.Warn("course progress cache invalidation failed",
			logger.CourseID(courseID), logger.StudentID(studentID), logger.Err(err))
	}
}

func (s *CourseProgressService) store(ctx context.Context, snapshot *progress.Snapshot) {
	if s.cache == nil {
		return
	}
	key := CourseProgressKey(snapshot.CourseID, snapshot.StudentID)
	if err := s.cache.Set(ctx, key, snapshot, s.ttl); err != nil {
		s.logger.Warn("course progress cache write failed",
			logger.CourseID(snapshot.CourseID), logger.StudentID(snapshot.StudentID), logger.Err(err))
	}
}
