package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/academy-core/internal/domain/session"
)

// SessionRepository implements session.Repository. Sessions are written by
// the scheduling subsystem; this repository only reads them.
type SessionRepository struct {
	conn *Connection
}

var _ session.Repository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionSelect = `
	SELECT s.id::text, s.kind, s.session_type, s.status, s.trial_request_id::text,
	       s.academy_id, s.title, COALESCE(c.title, ''), s.scheduled_at,
	       s.duration_minutes, s.room_name, s.updated_at
	FROM sessions s
	LEFT JOIN interactive_courses c ON c.id = s.course_id`

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		s                 session.Session
		kind, typ, status string
	)

	err := row.Scan(
		&s.ID,
		&kind,
		&typ,
		&status,
		&s.TrialRequestID,
		&s.AcademyID,
		&s.Title,
		&s.CourseTitle,
		&s.ScheduledAt,
		&s.DurationMinutes,
		&s.RoomName,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Kind = session.Kind(kind)
	s.Type = session.Type(typ)
	s.Status = session.Status(status)
	return &s, nil
}

// GetByID returns the session or session.ErrSessionNotFound.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	s, err := scanSession(r.conn.QueryRow(ctx, sessionSelect+` WHERE s.id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ListTrialSessionsChangedAfter returns trial sessions positioned after the
// cursor in (updated_at, id) order. Rows sharing a timestamp are split by id,
// so a page boundary never drops them.
func (r *SessionRepository) ListTrialSessionsChangedAfter(ctx context.Context, after session.ChangeCursor, limit int) ([]*session.Session, error) {
	if limit <= 0 {
		limit = 100
	}

	// uuid ordering matches the text ordering of the canonical form.
	afterID := after.ID
	if afterID == "" {
		afterID = uuid.Nil.String()
	}

	rows, err := r.conn.Query(ctx, sessionSelect+`
		WHERE s.session_type = 'trial' AND (s.updated_at, s.id) > ($1, $2::uuid)
		ORDER BY s.updated_at, s.id
		LIMIT $3`, after.UpdatedAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trial sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
