package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-core/internal/domain/progress"
	"github.com/alem-hub/academy-core/internal/domain/session"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

func gradePtr(v float64) *float64 { return &v }

func progressCourse() *progress.Course {
	att := func(st progress.AttendanceStatus) []progress.Attendance {
		return []progress.Attendance{{StudentID: "stu-1", Status: st}}
	}
	sub := func(g float64) []progress.Submission {
		return []progress.Submission{{StudentID: "stu-1", Grade: gradePtr(g)}}
	}

	return &progress.Course{
		ID: "course-1",
		Sessions: []progress.CourseSession{
			{ID: "s1", Status: session.StatusCompleted, Attendances: att(progress.AttendancePresent),
				Homework: []progress.Homework{{ID: "h1", Submissions: sub(80)}, {ID: "h2", Submissions: sub(90)}}},
			{ID: "s2", Status: session.StatusCompleted, Attendances: att(progress.AttendanceLate),
				Homework: []progress.Homework{{ID: "h3", Submissions: sub(70)}, {ID: "h4"}}},
			{ID: "s3", Status: session.StatusOngoing, Attendances: att(progress.AttendancePresent),
				Homework: []progress.Homework{{ID: "h5"}}},
			{ID: "s4", Status: session.StatusScheduled},
		},
	}
}

type progressFixture struct {
	svc       *CourseProgressService
	courses   *fakeCourseRepo
	snapshots *fakeSnapshotRepo
	cache     *stubCache
	clock     *timeutil.ManualClock
	logs      *logCapture
}

func newProgressFixture() *progressFixture {
	clock := newTestClock()
	courses := &fakeCourseRepo{courses: map[string]*progress.Course{"course-1": progressCourse()}}
	snapshots := &fakeSnapshotRepo{}
	cache := newStubCache(clock)
	logs, log := newLogCapture()

	return &progressFixture{
		svc:       NewCourseProgressService(courses, snapshots, cache, clock, log, 0),
		courses:   courses,
		snapshots: snapshots,
		cache:     cache,
		clock:     clock,
		logs:      logs,
	}
}

func TestCalculateCourseProgress(t *testing.T) {
	f := newProgressFixture()

	snap, err := f.svc.CalculateCourseProgress(context.Background(), "course-1", "stu-1")
	require.NoError(t, err)

	assert.Equal(t, 4, snap.TotalSessions)
	assert.Equal(t, 2, snap.CompletedSessions)
	assert.Equal(t, 3, snap.AttendedSessions)
	assert.Equal(t, 5, snap.TotalHomework)
	assert.Equal(t, 3, snap.SubmittedHomework)
	assert.Equal(t, []float64{80, 90, 70}, snap.Grades)
	assert.Equal(t, 50, snap.CompletionPercentage)
	assert.Equal(t, 75, snap.AttendanceRate)
	assert.Equal(t, 60, snap.HomeworkCompletionRate)
	require.NotNil(t, snap.AverageGrade)
	assert.Equal(t, 80.0, *snap.AverageGrade)
	assert.Equal(t, progress.BandYellow, snap.ProgressColor())
	assert.Equal(t, progress.BandYellow, snap.AttendanceColor())

	gets, _ := f.cache.calls()
	assert.Zero(t, gets, "calculation bypasses the cache")
}

func TestCalculateCourseProgress_CourseNotFound(t *testing.T) {
	f := newProgressFixture()

	_, err := f.svc.CalculateCourseProgress(context.Background(), "missing", "stu-1")
	assert.ErrorIs(t, err, progress.ErrCourseNotFound)
}

func TestGetCourseProgress_CachesResult(t *testing.T) {
	f := newProgressFixture()
	ctx := context.Background()

	first, err := f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	second, err := f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)

	assert.Equal(t, 1, f.courses.loads)
	assert.Equal(t, first.CompletionPercentage, second.CompletionPercentage)
	assert.Equal(t, first.AverageGrade, second.AverageGrade)

	f.clock.Advance(time.Hour)
	_, err = f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.courses.loads, "entry expires after the ttl")
}

func TestGetCourseProgress_NotFoundIsNotCached(t *testing.T) {
	f := newProgressFixture()

	_, err := f.svc.GetCourseProgress(context.Background(), "missing", "stu-1")
	assert.ErrorIs(t, err, progress.ErrCourseNotFound)
	assert.Zero(t, f.cache.Len())
}

func TestGetCourseProgress_CacheFailureStillComputes(t *testing.T) {
	f := newProgressFixture()
	f.cache.fail(true)

	snap, err := f.svc.GetCourseProgress(context.Background(), "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 50, snap.CompletionPercentage)
	assert.NotEmpty(t, f.logs.withMessage(t, "course progress cache read failed"))
}

func TestUpdateProgress_InvalidatesRecomputesAndPersists(t *testing.T) {
	f := newProgressFixture()
	ctx := context.Background()

	_, err := f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)

	// a new session completes after the first computation
	course := f.courses.courses["course-1"]
	course.Sessions[2].Status = session.StatusCompleted
	f.clock.Advance(10 * time.Minute)

	snap, err := f.svc.UpdateProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 75, snap.CompletionPercentage)
	assert.Equal(t, 2, f.courses.loads)

	require.Len(t, f.snapshots.saved, 1)
	assert.Equal(t, 75, f.snapshots.saved[0].CompletionPercentage)
	assert.Equal(t, testNow.Add(10*time.Minute), f.snapshots.saved[0].ComputedAt)

	cached, err := f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 75, cached.CompletionPercentage)
	assert.Equal(t, 2, f.courses.loads, "update repopulates the cache")
}

func TestUpdateProgress_SaveErrorSurfaces(t *testing.T) {
	f := newProgressFixture()
	f.snapshots.err = errStubDown

	_, err := f.svc.UpdateProgress(context.Background(), "course-1", "stu-1")
	assert.ErrorIs(t, err, errStubDown)
}

func TestClearCache_DoesNotRecompute(t *testing.T) {
	f := newProgressFixture()
	ctx := context.Background()

	_, err := f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.Len())

	f.svc.ClearCache(ctx, "course-1", "stu-1")
	assert.Zero(t, f.cache.Len())
	assert.Equal(t, 1, f.courses.loads)
	assert.Empty(t, f.snapshots.saved)
}

func TestClearCache_ProgressCacheFailureIsLogged(t *testing.T) {
	f := newProgressFixture()
	f.cache.fail(true)

	f.svc.ClearCache(context.Background(), "course-1", "stu-1")

	entries := f.logs.withMessage(t, "course progress cache invalidation failed")
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "course-1", entries[0]["course_id"])
}

func TestUpdateProgress_FailedInvalidationDoesNotPersistStaleValue(t *testing.T) {
	f := newProgressFixture()
	ctx := context.Background()

	stale, err := f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	require.Equal(t, 50, stale.CompletionPercentage)

	course := f.courses.courses["course-1"]
	course.Sessions[2].Status = session.StatusCompleted
	course.Sessions[3].Status = session.StatusCompleted
	f.cache.failDeletes(true)

	snap, err := f.svc.UpdateProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 100, snap.CompletionPercentage)

	require.Len(t, f.snapshots.saved, 1)
	assert.Equal(t, 100, f.snapshots.saved[0].CompletionPercentage)
	assert.Len(t, f.logs.withMessage(t, "course progress cache invalidation failed"), 1)

	cached, err := f.svc.GetCourseProgress(ctx, "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 100, cached.CompletionPercentage, "the fresh value overwrites the stale entry")
	assert.Equal(t, 2, f.courses.loads)
}
