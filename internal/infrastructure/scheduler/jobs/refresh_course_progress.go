package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/academy-core/internal/domain/progress"
	"github.com/alem-hub/academy-core/pkg/logger"
)

// ProgressUpdater recomputes and persists one progress snapshot.
type ProgressUpdater interface {
	UpdateProgress(ctx context.Context, courseID, studentID string) (*progress.Snapshot, error)
}

// RefreshCourseProgressJob recomputes snapshots that fell behind new
// attendance or homework activity.
type RefreshCourseProgressJob struct {
	stale   progress.StaleFinder
	updater ProgressUpdater
	limit   int
	log     *slog.Logger
}

// NewRefreshCourseProgressJob creates the job; limit caps snapshots per run.
func NewRefreshCourseProgressJob(stale progress.StaleFinder, updater ProgressUpdater, limit int, log *slog.Logger) *RefreshCourseProgressJob {
	if limit <= 0 {
		limit = 200
	}
	return &RefreshCourseProgressJob{
		stale:   stale,
		updater: updater,
		limit:   limit,
		log:     logger.OrDefault(log).With(logger.Component("refresh_course_progress")),
	}
}

// Name returns the job name.
func (j *RefreshCourseProgressJob) Name() string {
	return "refresh_course_progress"
}

// Description returns a human-readable description.
func (j *RefreshCourseProgressJob) Description() string {
	return "Recomputes course progress snapshots behind recent activity"
}

// Run refreshes up to limit stale snapshots.
func (j *RefreshCourseProgressJob) Run(ctx context.Context) error {
	keys, err := j.stale.ListStale(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list stale progress: %w", err)
	}

	updated, failed := 0, 0
	for _, k := range keys {
		if ctx.Err() != nil {
			break
		}
		if _, err := j.updater.UpdateProgress(ctx, k.CourseID, k.StudentID); err != nil {
			failed++
			j.log.Error("course progress refresh failed",
				logger.CourseID(k.CourseID),
				logger.StudentID(k.StudentID),
				logger.Err(err),
			)
			continue
		}
		updated++
	}

	j.log.Info("course progress refreshed",
		slog.Int("stale", len(keys)),
		slog.Int("updated", updated),
		slog.Int("failed", failed),
	)
	return ctx.Err()
}
