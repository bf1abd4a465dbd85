// Package progress computes a student's progress through an interactive course
// from session, attendance and homework records.
package progress

import (
	"context"

	"github.com/alem-hub/academy-core/internal/domain/session"
	"github.com/alem-hub/academy-core/internal/domain/shared"
)

// ErrCourseNotFound is returned when the course id is unknown.
var ErrCourseNotFound = shared.NewDomainError("progress", "LoadCourse", shared.ErrNotFound, "course not found")

// AttendanceStatus is a participant's attendance outcome for one session.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceLeft    AttendanceStatus = "left"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// CountsAsAttended reports whether the status means the student was there.
func (s AttendanceStatus) CountsAsAttended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// Attendance is one attendance record.
type Attendance struct {
	StudentID string
	Status    AttendanceStatus
}

// Submission is one homework submission. Grade is nil until graded.
type Submission struct {
	StudentID string
	Grade     *float64
}

// Homework is an assignment attached to a course session.
type Homework struct {
	ID          string
	Submissions []Submission
}

// CourseSession is one session of an interactive course with its records attached.
type CourseSession struct {
	ID          string
	Status      session.Status
	Attendances []Attendance
	Homework    []Homework
}

// Course is an interactive course with its sessions in schedule order.
type Course struct {
	ID       string
	Title    string
	Sessions []CourseSession
}

// CourseRepository loads courses for progress computation.
type CourseRepository interface {
	// LoadForStudent returns the course with only studentID's attendance and
	// submission rows attached. Returns ErrCourseNotFound for an unknown course.
	LoadForStudent(ctx context.Context, courseID, studentID string) (*Course, error)
}

// SnapshotRepository persists denormalized progress summaries.
type SnapshotRepository interface {
	// Save upserts the snapshot row for (course, student) atomically.
	Save(ctx context.Context, snapshot *Snapshot) error
}

// Key identifies one student's progress in one course.
type Key struct {
	CourseID  string
	StudentID string
}

// StaleFinder finds progress snapshots that lag behind recorded activity.
type StaleFinder interface {
	// ListStale returns pairs whose latest attendance or submission is newer
	// than their snapshot, or that have no snapshot yet, oldest activity first.
	ListStale(ctx context.Context, limit int) ([]Key, error)
}
