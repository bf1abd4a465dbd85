package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/academy-core/internal/domain/progress"
)

// SnapshotRepository implements progress.SnapshotRepository on course_progress.
type SnapshotRepository struct {
	conn *Connection
}

var _ progress.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// Save upserts the (course, student) row; every column is replaced together.
func (r *SnapshotRepository) Save(ctx context.Context, s *progress.Snapshot) error {
	grades := s.Grades
	if grades == nil {
		grades = []float64{}
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO course_progress (
				id, course_id, student_id,
				total_sessions, completed_sessions, attended_sessions,
				total_homework, submitted_homework, grades,
				completion_percentage, attendance_rate, homework_completion_rate,
				average_grade, last_updated
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (course_id, student_id) DO UPDATE SET
				total_sessions = EXCLUDED.total_sessions,
				completed_sessions = EXCLUDED.completed_sessions,
				attended_sessions = EXCLUDED.attended_sessions,
				total_homework = EXCLUDED.total_homework,
				submitted_homework = EXCLUDED.submitted_homework,
				grades = EXCLUDED.grades,
				completion_percentage = EXCLUDED.completion_percentage,
				attendance_rate = EXCLUDED.attendance_rate,
				homework_completion_rate = EXCLUDED.homework_completion_rate,
				average_grade = EXCLUDED.average_grade,
				last_updated = EXCLUDED.last_updated`,
			uuid.New(), s.CourseID, s.StudentID,
			s.TotalSessions, s.CompletedSessions, s.AttendedSessions,
			s.TotalHomework, s.SubmittedHomework, grades,
			s.CompletionPercentage, s.AttendanceRate, s.HomeworkCompletionRate,
			s.AverageGrade, s.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert course progress: %w", err)
		}
		return nil
	})
}

var _ progress.StaleFinder = (*SnapshotRepository)(nil)

// listStaleQuery finds (course, student) pairs with activity newer than their
// snapshot: attendance, submissions, grades and course session status changes.
// A status change touches every student that already has a snapshot.
const listStaleQuery = `
	WITH activity AS (
		SELECT cs.course_id, a.student_id, MAX(a.recorded_at) AS at
		FROM session_attendances a
		JOIN course_sessions cs ON cs.id = a.session_id
		GROUP BY cs.course_id, a.student_id
		UNION ALL
		SELECT cs.course_id, s.student_id, MAX(GREATEST(s.submitted_at, s.graded_at))
		FROM homework_submissions s
		JOIN homework h ON h.id = s.homework_id
		JOIN course_sessions cs ON cs.id = h.session_id
		GROUP BY cs.course_id, s.student_id
		UNION ALL
		SELECT cs.course_id, cp.student_id, MAX(cs.updated_at)
		FROM course_sessions cs
		JOIN course_progress cp ON cp.course_id = cs.course_id
		GROUP BY cs.course_id, cp.student_id
	)
	SELECT a.course_id::text, a.student_id
	FROM activity a
	LEFT JOIN course_progress p
		ON p.course_id = a.course_id AND p.student_id = a.student_id
	GROUP BY a.course_id, a.student_id, p.last_updated
	HAVING p.last_updated IS NULL OR MAX(a.at) > p.last_updated
	ORDER BY MAX(a.at), a.course_id, a.student_id
	LIMIT $1`

// ListStale implements progress.StaleFinder.
func (r *SnapshotRepository) ListStale(ctx context.Context, limit int) ([]progress.Key, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.conn.Query(ctx, listStaleQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale progress: %w", err)
	}
	defer rows.Close()

	var keys []progress.Key
	for rows.Next() {
		var k progress.Key
		if err := rows.Scan(&k.CourseID, &k.StudentID); err != nil {
			return nil, fmt.Errorf("scan stale progress: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
