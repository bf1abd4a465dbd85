package trial

import (
	"context"
	"time"
)

// Repository определяет операции с заявками на пробный урок.
// Каждый метод записи выполняется атомарно.
type Repository interface {
	// GetByID возвращает заявку по ID.
	// Возвращает ErrTrialRequestNotFound, если заявка не найдена.
	GetByID(ctx context.Context, id string) (*Request, error)

	// UpdateStatus записывает новый статус.
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error

	// LinkSession устанавливает trial_session_id, только если он ещё пуст.
	// Возвращает false, если сессия уже была привязана.
	LinkSession(ctx context.Context, id, sessionID string, updatedAt time.Time) (bool, error)

	// SaveCompletion сохраняет статус, оценку, отзыв и время завершения одной операцией.
	SaveCompletion(ctx context.Context, r *Request) error
}
