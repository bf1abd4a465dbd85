package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/academy-core/internal/domain/session"
)

// SettingsRepository implements session.SettingsRepository.
type SettingsRepository struct {
	conn *Connection
}

var _ session.SettingsRepository = (*SettingsRepository)(nil)

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(conn *Connection) *SettingsRepository {
	return &SettingsRepository{conn: conn}
}

// GetByAcademyID returns the academy's row or session.ErrSettingsNotFound.
func (r *SettingsRepository) GetByAcademyID(ctx context.Context, academyID string) (*session.AcademySettings, error) {
	var s session.AcademySettings

	err := r.conn.QueryRow(ctx, `
		SELECT academy_id, preparation_minutes, buffer_minutes,
		       late_tolerance_minutes, early_join_minutes
		FROM academy_settings
		WHERE academy_id = $1`, academyID,
	).Scan(
		&s.AcademyID,
		&s.PreparationMinutes,
		&s.BufferMinutes,
		&s.LateToleranceMinutes,
		&s.EarlyJoinMinutes,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, session.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get academy settings: %w", err)
	}
	return &s, nil
}
