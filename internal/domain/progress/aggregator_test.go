package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-core/internal/domain/session"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func grade(v float64) *float64 { return &v }

// sampleCourse: 4 sessions, 2 completed, 3 attended by "stu-1",
// 5 homework items, 3 submitted with grades 80, 90, 70.
func sampleCourse() *Course {
	return &Course{
		ID: "course-1",
		Sessions: []CourseSession{
			{
				ID:          "s1",
				Status:      session.StatusCompleted,
				Attendances: []Attendance{{StudentID: "stu-1", Status: AttendancePresent}},
				Homework: []Homework{
					{ID: "h1", Submissions: []Submission{{StudentID: "stu-1", Grade: grade(80)}}},
					{ID: "h2", Submissions: []Submission{{StudentID: "stu-1", Grade: grade(90)}}},
				},
			},
			{
				ID:          "s2",
				Status:      session.StatusCompleted,
				Attendances: []Attendance{{StudentID: "stu-1", Status: AttendanceLate}},
				Homework: []Homework{
					{ID: "h3", Submissions: []Submission{{StudentID: "stu-1", Grade: grade(70)}}},
					{ID: "h4"},
				},
			},
			{
				ID:     "s3",
				Status: session.StatusOngoing,
				Attendances: []Attendance{
					{StudentID: "stu-1", Status: AttendanceAbsent},
					{StudentID: "stu-1", Status: AttendancePresent},
				},
				Homework: []Homework{{ID: "h5"}},
			},
			{
				ID:          "s4",
				Status:      session.StatusScheduled,
				Attendances: []Attendance{{StudentID: "stu-1", Status: AttendanceLeft}},
			},
		},
	}
}

func TestAggregate_SampleCourse(t *testing.T) {
	snap := Aggregate(sampleCourse(), "stu-1", now)

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
	assert.Equal(t, now, snap.ComputedAt)
}

func TestAggregate_IgnoresOtherStudents(t *testing.T) {
	course := &Course{
		ID: "course-1",
		Sessions: []CourseSession{{
			ID:          "s1",
			Status:      session.StatusCompleted,
			Attendances: []Attendance{{StudentID: "stu-2", Status: AttendancePresent}},
			Homework: []Homework{
				{ID: "h1", Submissions: []Submission{{StudentID: "stu-2", Grade: grade(100)}}},
			},
		}},
	}

	snap := Aggregate(course, "stu-1", now)

	assert.Equal(t, 0, snap.AttendedSessions)
	assert.Equal(t, 0, snap.SubmittedHomework)
	assert.Empty(t, snap.Grades)
	assert.Nil(t, snap.AverageGrade)
}

func TestAggregate_EmptyCourse(t *testing.T) {
	snap := Aggregate(&Course{ID: "empty"}, "stu-1", now)

	assert.Equal(t, 0, snap.CompletionPercentage)
	assert.Equal(t, 0, snap.AttendanceRate)
	assert.Equal(t, 0, snap.HomeworkCompletionRate)
	assert.Nil(t, snap.AverageGrade)
}

func TestAggregate_UngradedSubmissionCountsAsSubmitted(t *testing.T) {
	course := &Course{
		ID: "course-1",
		Sessions: []CourseSession{{
			ID:       "s1",
			Status:   session.StatusCompleted,
			Homework: []Homework{{ID: "h1", Submissions: []Submission{{StudentID: "stu-1"}}}},
		}},
	}

	snap := Aggregate(course, "stu-1", now)

	assert.Equal(t, 1, snap.SubmittedHomework)
	assert.Equal(t, 100, snap.HomeworkCompletionRate)
	assert.Nil(t, snap.AverageGrade)
}

func TestAggregate_Invariants(t *testing.T) {
	snap := Aggregate(sampleCourse(), "stu-1", now)

	assert.LessOrEqual(t, snap.AttendedSessions, snap.TotalSessions)
	assert.LessOrEqual(t, snap.SubmittedHomework, snap.TotalHomework)
	for _, pct := range []int{snap.CompletionPercentage, snap.AttendanceRate, snap.HomeworkCompletionRate} {
		assert.GreaterOrEqual(t, pct, 0)
		assert.LessOrEqual(t, pct, 100)
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(3, 0))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 50, Percentage(1, 2))
	assert.Equal(t, 100, Percentage(7, 7))
}

func TestAverageGrade(t *testing.T) {
	assert.Nil(t, AverageGrade(nil))

	avg := AverageGrade([]float64{85, 90, 78})
	require.NotNil(t, avg)
	assert.Equal(t, 84.3, *avg)

	avg = AverageGrade([]float64{70, 75})
	require.NotNil(t, avg)
	assert.Equal(t, 72.5, *avg)
}

func TestColorBands(t *testing.T) {
	cases := []struct {
		pct        int
		progress   Band
		attendance Band
	}{
		{100, BandGreen, BandGreen},
		{90, BandGreen, BandGreen},
		{89, BandGreen, BandYellow},
		{80, BandGreen, BandYellow},
		{79, BandYellow, BandYellow},
		{75, BandYellow, BandYellow},
		{74, BandYellow, BandRed},
		{50, BandYellow, BandRed},
		{49, BandRed, BandRed},
		{0, BandRed, BandRed},
	}

	for _, c := range cases {
		assert.Equal(t, c.progress, ProgressColor(c.pct), "progress %d", c.pct)
		assert.Equal(t, c.attendance, AttendanceColor(c.pct), "attendance %d", c.pct)
	}

	snap := &Snapshot{CompletionPercentage: 50, AttendanceRate: 75}
	assert.Equal(t, BandYellow, snap.ProgressColor())
	assert.Equal(t, BandYellow, snap.AttendanceColor())
}
