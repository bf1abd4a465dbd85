package progress

import (
	"time"

	"github.com/alem-hub/academy-core/internal/domain/session"
)

// Aggregate computes the snapshot for studentID. Records that belong to other
// students are ignored even if the course carries them.
func Aggregate(course *Course, studentID string, now time.Time) *Snapshot {
	snap := &Snapshot{
		CourseID:   course.ID,
		StudentID:  studentID,
		Grades:     []float64{},
		ComputedAt: now,
	}

	for _, cs := range course.Sessions {
		snap.TotalSessions++

		if cs.Status == session.StatusCompleted {
			snap.CompletedSessions++
		}

		if attended(cs.Attendances, studentID) {
			snap.AttendedSessions++
		}

		for _, hw := range cs.Homework {
			snap.TotalHomework++

			sub, ok := submissionBy(hw.Submissions, studentID)
			if !ok {
				continue
			}
			snap.SubmittedHomework++
			if sub.Grade != nil {
				snap.Grades = append(snap.Grades, *sub.Grade)
			}
		}
	}

	snap.CompletionPercentage = Percentage(snap.CompletedSessions, snap.TotalSessions)
	snap.AttendanceRate = Percentage(snap.AttendedSessions, snap.TotalSessions)
	snap.HomeworkCompletionRate = Percentage(snap.SubmittedHomework, snap.TotalHomework)
	snap.AverageGrade = AverageGrade(snap.Grades)

	return snap
}

func attended(records []Attendance, studentID string) bool {
	for _, a := range records {
		if a.StudentID == studentID && a.Status.CountsAsAttended() {
			return true
		}
	}
	return false
}

// submissionBy returns the student's first submission.
func submissionBy(subs []Submission, studentID string) (Submission, bool) {
	for _, s := range subs {
		if s.StudentID == studentID {
			return s, true
		}
	}
	return Submission{}, false
}
