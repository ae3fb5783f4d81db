package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unilink-backend/internal/domain"
)

// CallNotificationRepository handles call notification data operations
type CallNotificationRepository struct {
	db *pgxpool.Pool
}

// NewCallNotificationRepository creates a new call notification repository
func NewCallNotificationRepository(db *pgxpool.Pool) *CallNotificationRepository {
	return &CallNotificationRepository{db: db}
}

// Create inserts a new call notification and returns the stored row
func (r *CallNotificationRepository) Create(ctx context.Context, notification *domain.CallNotificationCreate) (*domain.CallNotification, error) {
	query := `
		INSERT INTO call_notifications (recipient_id, kind, payload, is_read, created_at)
		VALUES ($1, $2, $3, false, NOW())
		RETURNING notification_id, recipient_id, kind, payload, is_read, created_at, read_at
	`

	var n domain.CallNotification
	err := r.db.QueryRow(ctx, query,
		notification.RecipientID,
		notification.Kind,
		notification.Payload,
	).Scan(
		&n.NotificationID,
		&n.RecipientID,
		&n.Kind,
		&n.Payload,
		&n.IsRead,
		&n.CreatedAt,
		&n.ReadAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create call notification: %w", err)
	}

	return &n, nil
}

// GetUnread retrieves all unread call notifications for a recipient,
// oldest first so the earliest pending invite is presented first
func (r *CallNotificationRepository) GetUnread(ctx context.Context, recipientID uuid.UUID) ([]domain.CallNotification, error) {
	query := `
		SELECT notification_id, recipient_id, kind, payload, is_read, created_at, read_at
		FROM call_notifications
		WHERE recipient_id = $1 AND is_read = false
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetByRecipientID retrieves call notifications for a recipient with pagination
func (r *CallNotificationRepository) GetByRecipientID(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]domain.CallNotification, int, error) {
	query := `
		SELECT notification_id, recipient_id, kind, payload, is_read, created_at, read_at
		FROM call_notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications, err := scanNotifications(rows)
	if err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM call_notifications WHERE recipient_id = $1`
	var totalCount int
	err = r.db.QueryRow(ctx, countQuery, recipientID).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	return notifications, totalCount, nil
}

// GetUnreadCount returns the count of unread call notifications for a recipient
func (r *CallNotificationRepository) GetUnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM call_notifications WHERE recipient_id = $1 AND is_read = false`
	var count int
	err := r.db.QueryRow(ctx, query, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return count, nil
}

// MarkAsRead marks a call notification as read. The recipient filter keeps a
// user from acknowledging someone else's invite.
func (r *CallNotificationRepository) MarkAsRead(ctx context.Context, notificationID, recipientID uuid.UUID) error {
	query := `
		UPDATE call_notifications
		SET is_read = true, read_at = NOW()
		WHERE notification_id = $1 AND recipient_id = $2
	`
	result, err := r.db.Exec(ctx, query, notificationID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// MarkAllAsRead marks all call notifications as read for a recipient
func (r *CallNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error {
	query := `
		UPDATE call_notifications
		SET is_read = true, read_at = NOW()
		WHERE recipient_id = $1 AND is_read = false
	`
	_, err := r.db.Exec(ctx, query, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

// Delete removes a call notification
func (r *CallNotificationRepository) Delete(ctx context.Context, notificationID, recipientID uuid.UUID) error {
	query := `DELETE FROM call_notifications WHERE notification_id = $1 AND recipient_id = $2`
	result, err := r.db.Exec(ctx, query, notificationID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotifications(rows pgx.Rows) ([]domain.CallNotification, error) {
	var notifications []domain.CallNotification
	for rows.Next() {
		var n domain.CallNotification
		err := rows.Scan(
			&n.NotificationID,
			&n.RecipientID,
			&n.Kind,
			&n.Payload,
			&n.IsRead,
			&n.CreatedAt,
			&n.ReadAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}
