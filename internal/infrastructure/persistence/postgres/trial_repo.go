package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/trial"
)

// TrialRepository implements trial.Repository.
type TrialRepository struct {
	conn *Connection
}

var _ trial.Repository = (*TrialRepository)(nil)

// NewTrialRepository creates a new TrialRepository.
func NewTrialRepository(conn *Connection) *TrialRepository {
	return &TrialRepository{conn: conn}
}

const trialColumns = `
	id::text, academy_id, student_id, status, trial_session_id::text,
	rating, feedback, completed_at, created_at, updated_at`

// GetByID returns the trial request or trial.ErrTrialRequestNotFound.
func (r *TrialRepository) GetByID(ctx context.Context, id string) (*trial.Request, error) {
	var (
		req    trial.Request
		status string
		rating *int16
	)

	err := r.conn.QueryRow(ctx, `SELECT `+trialColumns+` FROM trial_requests WHERE id = $1`, id).Scan(
		&req.ID,
		&req.AcademyID,
		&req.StudentID,
		&status,
		&req.TrialSessionID,
		&rating,
		&req.Feedback,
		&req.CompletedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, trial.ErrTrialRequestNotFound
		}
		return nil, fmt.Errorf("get trial request: %w", err)
	}

	req.Status = trial.Status(status)
	if rating != nil {
		v := int(*rating)
		req.Rating = &v
	}
	return &req, nil
}

// UpdateStatus writes the new status.
func (r *TrialRepository) UpdateStatus(ctx context.Context, id string, status trial.Status, updatedAt time.Time) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE trial_requests SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update trial request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return trial.ErrTrialRequestNotFound
	}
	return nil
}

// LinkSession sets trial_session_id only while it is still NULL.
func (r *TrialRepository) LinkSession(ctx context.Context, id, sessionID string, updatedAt time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE trial_requests
		SET trial_session_id = $2, updated_at = $3
		WHERE id = $1 AND trial_session_id IS NULL`,
		id, sessionID, updatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("link trial session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trial_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check trial request: %w", err)
	}
	if !exists {
		return false, trial.ErrTrialRequestNotFound
	}
	return false, nil
}

// SaveCompletion writes status, rating, feedback and completion time in one statement.
func (r *TrialRepository) SaveCompletion(ctx context.Context, req *trial.Request) error {
	var rating *int16
	if req.Rating != nil {
		v := int16(*req.Rating)
		rating = &v
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE trial_requests
		SET status = $2, rating = $3, feedback = $4, completed_at = $5, updated_at = $6
		WHERE id = $1`,
		req.ID, string(req.Status), rating, req.Feedback, req.CompletedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save trial completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return trial.ErrTrialRequestNotFound
	}
	return nil
}
