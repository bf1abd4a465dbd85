package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/academy-core/internal/domain/progress"
	"github.com/alem-hub/academy-core/internal/domain/session"
)

// CourseRepository implements progress.CourseRepository.
type CourseRepository struct {
	conn *Connection
}

var _ progress.CourseRepository = (*CourseRepository)(nil)

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// LoadForStudent reads the course, its sessions and homework, and only
// studentID's attendance and submission rows, inside one snapshot.
func (r *CourseRepository) LoadForStudent(ctx context.Context, courseID, studentID string) (*progress.Course, error) {
	var course *progress.Course

	err := r.conn.WithTx(ctx, SnapshotReadTxOptions(), func(tx pgx.Tx) error {
		var err error
		course, err = loadCourse(ctx, tx, courseID, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return course, nil
}

func loadCourse(ctx context.Context, q Querier, courseID, studentID string) (*progress.Course, error) {
	course := &progress.Course{}
	err := q.QueryRow(ctx, `SELECT id::text, title FROM interactive_courses WHERE id = $1`, courseID).
		Scan(&course.ID, &course.Title)
	if err != nil {
		if IsNoRows(err) {
			return nil, progress.ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}

	// index of each session in course.Sessions
	index := make(map[string]int)

	rows, err := q.Query(ctx, `
		SELECT id::text, status FROM course_sessions
		WHERE course_id = $1
		ORDER BY scheduled_at, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course sessions: %w", err)
	}
	for rows.Next() {
		var cs progress.CourseSession
		var status string
		if err := rows.Scan(&cs.ID, &status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan course session: %w", err)
		}
		cs.Status = session.Status(status)
		index[cs.ID] = len(course.Sessions)
		course.Sessions = append(course.Sessions, cs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadAttendances(ctx, q, course, index, courseID, studentID); err != nil {
		return nil, err
	}
	if err := loadHomework(ctx, q, course, index, courseID, studentID); err != nil {
		return nil, err
	}
	return course, nil
}

func loadAttendances(ctx context.Context, q Querier, course *progress.Course, index map[string]int, courseID, studentID string) error {
	rows, err := q.Query(ctx, `
		SELECT a.session_id::text, a.student_id, a.status
		FROM session_attendances a
		JOIN course_sessions cs ON cs.id = a.session_id
		WHERE cs.course_id = $1 AND a.student_id = $2
		ORDER BY a.id`, courseID, studentID)
	if err != nil {
		return fmt.Errorf("list attendances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, student, status string
		if err := rows.Scan(&sessionID, &student, &status); err != nil {
			return fmt.Errorf("scan attendance: %w", err)
		}
		i, ok := index[sessionID]
		if !ok {
			continue
		}
		course.Sessions[i].Attendances = append(course.Sessions[i].Attendances,
			progress.Attendance{StudentID: student, Status: progress.AttendanceStatus(status)})
	}
	return rows.Err()
}

func loadHomework(ctx context.Context, q Querier, course *progress.Course, index map[string]int, courseID, studentID string) error {
	type position struct{ session, homework int }
	homeworkAt := make(map[string]position)

	rows, err := q.Query(ctx, `
		SELECT h.id::text, h.session_id::text
		FROM homework h
		JOIN course_sessions cs ON cs.id = h.session_id
		WHERE cs.course_id = $1
		ORDER BY cs.scheduled_at, h.created_at, h.id`, courseID)
	if err != nil {
		return fmt.Errorf("list homework: %w", err)
	}
	for rows.Next() {
		var homeworkID, sessionID string
		if err := rows.Scan(&homeworkID, &sessionID); err != nil {
			rows.Close()
			return fmt.Errorf("scan homework: %w", err)
		}
		i, ok := index[sessionID]
		if !ok {
			continue
		}
		homeworkAt[homeworkID] = position{session: i, homework: len(course.Sessions[i].Homework)}
		course.Sessions[i].Homework = append(course.Sessions[i].Homework, progress.Homework{ID: homeworkID})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
		SELECT s.homework_id::text, s.student_id, s.grade::float8
		FROM homework_submissions s
		JOIN homework h ON h.id = s.homework_id
		JOIN course_sessions cs ON cs.id = h.session_id
		WHERE cs.course_id = $1 AND s.student_id = $2
		ORDER BY s.submitted_at, s.id`, courseID, studentID)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			homeworkID, student string
			grade               *float64
		)
		if err := rows.Scan(&homeworkID, &student, &grade); err != nil {
			return fmt.Errorf("scan submission: %w", err)
		}
		pos, ok := homeworkAt[homeworkID]
		if !ok {
			continue
		}
		hw := &course.Sessions[pos.session].Homework[pos.homework]
		hw.Submissions = append(hw.Submissions, progress.Submission{StudentID: student, Grade: grade})
	}
	return rows.Err()
}
