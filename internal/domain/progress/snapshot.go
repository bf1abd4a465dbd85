package progress

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Band is a traffic-light classification of a percentage.
type Band string

const (
	BandGreen  Band = "green"
	BandYellow Band = "yellow"
	BandRed    Band = "red"
)

// Snapshot is the computed progress of one student in one course.
type Snapshot struct {
	CourseID               string    `json:"course_id"`
	StudentID              string    `json:"student_id"`
	TotalSessions          int       `json:"total_sessions"`
	CompletedSessions      int       `json:"completed_sessions"`
	AttendedSessions       int       `json:"attended_sessions"`
	TotalHomework          int       `json:"total_homework"`
	SubmittedHomework      int       `json:"submitted_homework"`
	Grades                 []float64 `json:"grades"`
	CompletionPercentage   int       `json:"completion_percentage"`
	AttendanceRate         int       `json:"attendance_rate"`
	HomeworkCompletionRate int       `json:"homework_completion_rate"`
	AverageGrade           *float64  `json:"average_grade"`
	ComputedAt             time.Time `json:"computed_at"`
}

// ProgressColor classifies the completion percentage.
func (s *Snapshot) ProgressColor() Band {
	return ProgressColor(s.CompletionPercentage)
}

// AttendanceColor classifies the attendance rate.
func (s *Snapshot) AttendanceColor() Band {
	return AttendanceColor(s.AttendanceRate)
}

// ProgressColor: >=80 green, >=50 yellow, else red.
func ProgressColor(pct int) Band {
	switch {
	case pct >= 80:
		return BandGreen
	case pct >= 50:
		return BandYellow
	default:
		return BandRed
	}
}

// AttendanceColor: >=90 green, >=75 yellow, else red.
func AttendanceColor(pct int) Band {
	switch {
	case pct >= 90:
		return BandGreen
	case pct >= 75:
		return BandYellow
	default:
		return BandRed
	}
}

// Percentage returns round(part/total*100), or 0 when total is 0.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// AverageGrade returns the mean rounded to one decimal place, or nil for no grades.
func AverageGrade(grades []float64) *float64 {
	if len(grades) == 0 {
		return nil
	}

	sum := decimal.Zero
	for _, g := range grades {
		sum = sum.Add(decimal.NewFromFloat(g))
	}

	avg, _ := sum.Div(decimal.NewFromInt(int64(len(grades)))).Round(1).Float64()
	return &avg
}
