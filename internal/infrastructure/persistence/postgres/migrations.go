package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations, one transaction per version.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations in version order.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range sortedMigrations(m.migrations) {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
			break
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

func sortedMigrations(in []Migration) []Migration {
	out := make([]Migration, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_sessions_and_trials", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_interactive_courses", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_course_progress", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "track_course_changes", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: SESSIONS, TRIAL REQUESTS, ACADEMY SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS academy_settings (
    academy_id TEXT PRIMARY KEY,
    preparation_minutes INTEGER,
    buffer_minutes INTEGER,
    late_tolerance_minutes INTEGER,
    early_join_minutes INTEGER,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trial_requests (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    academy_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    trial_session_id UUID,
    rating SMALLINT,
    feedback TEXT,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_trial_status CHECK (status IN ('pending', 'approved', 'scheduled', 'completed', 'cancelled', 'no_show', 'rejected')),
    CONSTRAINT valid_trial_rating CHECK (rating IS NULL OR rating BETWEEN 1 AND 5)
);

CREATE INDEX IF NOT EXISTS idx_trial_requests_academy ON trial_requests(academy_id, status);
CREATE INDEX IF NOT EXISTS idx_trial_requests_session ON trial_requests(trial_session_id) WHERE trial_session_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    kind VARCHAR(20) NOT NULL,
    session_type VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
    trial_request_id UUID REFERENCES trial_requests(id) ON DELETE SET NULL,
    academy_id TEXT,
    course_id UUID,
    title TEXT,
    scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_minutes INTEGER NOT NULL DEFAULT 30,
    room_name TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_session_kind CHECK (kind IN ('quran', 'academic', 'interactive')),
    CONSTRAINT valid_session_type CHECK (session_type IN ('individual', 'group', 'trial')),
    CONSTRAINT valid_session_status CHECK (status IN ('scheduled', 'ready', 'ongoing', 'completed', 'cancelled', 'absent')),
    CONSTRAINT valid_duration CHECK (duration_minutes > 0)
);

CREATE INDEX IF NOT EXISTS idx_sessions_trial_updated ON sessions(updated_at, id) WHERE session_type = 'trial';
CREATE INDEX IF NOT EXISTS idx_sessions_academy ON sessions(academy_id);
`

const migration001Down = `
DROP TABLE IF EXISTS sessions;
DROP TABLE IF EXISTS trial_requests;
DROP TABLE IF EXISTS academy_settings;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: INTERACTIVE COURSES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS interactive_courses (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    academy_id TEXT,
    title TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS course_sessions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    course_id UUID NOT NULL REFERENCES interactive_courses(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
    scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_course_session_status CHECK (status IN ('scheduled', 'ready', 'ongoing', 'completed', 'cancelled', 'absent'))
);

CREATE INDEX IF NOT EXISTS idx_course_sessions_course ON course_sessions(course_id, scheduled_at);

CREATE TABLE IF NOT EXISTS session_attendances (
    id BIGSERIAL PRIMARY KEY,
    session_id UUID NOT NULL REFERENCES course_sessions(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL,
    status VARCHAR(20) NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_attendance_status CHECK (status IN ('present', 'late', 'left', 'absent'))
);

CREATE INDEX IF NOT EXISTS idx_session_attendances_student ON session_attendances(student_id, session_id);

CREATE TABLE IF NOT EXISTS homework (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    session_id UUID NOT NULL REFERENCES course_sessions(id) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_homework_session ON homework(session_id);

CREATE TABLE IF NOT EXISTS homework_submissions (
    id BIGSERIAL PRIMARY KEY,
    homework_id UUID NOT NULL REFERENCES homework(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL,
    grade NUMERIC(5,2),
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_homework_submissions_student ON homework_submissions(student_id, homework_id);
`

const migration002Down = `
DROP TABLE IF EXISTS homework_submissions;
DROP TABLE IF EXISTS homework;
DROP TABLE IF EXISTS session_attendances;
DROP TABLE IF EXISTS course_sessions;
DROP TABLE IF EXISTS interactive_courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: COURSE PROGRESS SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS course_progress (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL REFERENCES interactive_courses(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL,
    total_sessions INTEGER NOT NULL DEFAULT 0,
    completed_sessions INTEGER NOT NULL DEFAULT 0,
    attended_sessions INTEGER NOT NULL DEFAULT 0,
    total_homework INTEGER NOT NULL DEFAULT 0,
    submitted_homework INTEGER NOT NULL DEFAULT 0,
    grades DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
    completion_percentage INTEGER NOT NULL DEFAULT 0,
    attendance_rate INTEGER NOT NULL DEFAULT 0,
    homework_completion_rate INTEGER NOT NULL DEFAULT 0,
    average_grade NUMERIC(5,1),
    last_updated TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT uq_course_progress UNIQUE (course_id, student_id),
    CONSTRAINT valid_attended CHECK (attended_sessions <= total_sessions),
    CONSTRAINT valid_submitted CHECK (submitted_homework <= total_homework),
    CONSTRAINT valid_percentages CHECK (
        completion_percentage BETWEEN 0 AND 100 AND
        attendance_rate BETWEEN 0 AND 100 AND
        homework_completion_rate BETWEEN 0 AND 100
    )
);
`

const migration003Down = `
DROP TABLE IF EXISTS course_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CHANGE TRACKING FOR PROGRESS STALENESS
// Session status changes and late grading both move a student's progress.
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
ALTER TABLE course_sessions
    ADD COLUMN IF NOT EXISTS updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW();

ALTER TABLE homework_submissions
    ADD COLUMN IF NOT EXISTS graded_at TIMESTAMP WITH TIME ZONE;

UPDATE homework_submissions SET graded_at = submitted_at WHERE grade IS NOT NULL AND graded_at IS NULL;

CREATE OR REPLACE FUNCTION touch_course_session() RETURNS trigger AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_course_sessions_touch ON course_sessions;
CREATE TRIGGER trg_course_sessions_touch
    BEFORE UPDATE ON course_sessions
    FOR EACH ROW
    WHEN (OLD.status IS DISTINCT FROM NEW.status)
    EXECUTE FUNCTION touch_course_session();

CREATE OR REPLACE FUNCTION stamp_submission_grade() RETURNS trigger AS $$
BEGIN
    IF NEW.grade IS NOT NULL AND (TG_OP = 'INSERT' OR NEW.grade IS DISTINCT FROM OLD.grade) THEN
        NEW.graded_at = NOW();
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_homework_submissions_graded ON homework_submissions;
CREATE TRIGGER trg_homework_submissions_graded
    BEFORE INSERT OR UPDATE OF grade ON homework_submissions
    FOR EACH ROW
    EXECUTE FUNCTION stamp_submission_grade();

CREATE INDEX IF NOT EXISTS idx_course_sessions_updated ON course_sessions(course_id, updated_at);
`

const migration004Down = `
DROP INDEX IF EXISTS idx_course_sessions_updated;
DROP TRIGGER IF EXISTS trg_homework_submissions_graded ON homework_submissions;
DROP FUNCTION IF EXISTS stamp_submission_grade();
DROP TRIGGER IF EXISTS trg_course_sessions_touch ON course_sessions;
DROP FUNCTION IF EXISTS touch_course_session();
ALTER TABLE homework_submissions DROP COLUMN IF EXISTS graded_at;
ALTER TABLE course_sessions DROP COLUMN IF EXISTS updated_at;
`
