package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"unilink-backend/internal/domain"
	"unilink-backend/pkg/constants"
)

// Repository persists call notifications
type Repository interface {
	GetUnread(ctx context.Context, recipientID uuid.UUID) ([]domain.CallNotification, error)
	GetByRecipientID(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]domain.CallNotification, int, error)
	GetUnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkAsRead(ctx context.Context, notificationID, recipientID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error
	Delete(ctx context.Context, notificationID, recipientID uuid.UUID) error
}

// Service handles notification read-side business logic
type Service struct {
	repo Repository
}

// NewService creates a new notification service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetNotifications retrieves call notifications for a user with pagination
func (s *Service) GetNotifications(ctx context.Context, recipientID uuid.UUID, limit, offset int) (*domain.CallNotificationListResponse, error) {
	if limit == 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}

	notifications, totalCount, err := s.repo.GetByRecipientID(ctx, recipientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	unreadCount, err := s.repo.GetUnreadCount(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread count: %w", err)
	}

	hasMore := (offset + len(notifications)) < totalCount

	return &domain.CallNotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unreadCount,
		TotalCount:    totalCount,
		HasMore:       hasMore,
	}, nil
}

// GetUnread retrieves the user's unread call notifications
func (s *Service) GetUnread(ctx context.Context, recipientID uuid.UUID) ([]domain.CallNotification, error) {
	notifications, err := s.repo.GetUnread(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread notifications: %w", err)
	}
	return notifications, nil
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, notificationID, recipientID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, notificationID, recipientID); err != nil {
		if err == domain.ErrNotificationNotFound {
			return err
		}
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

// MarkAllAsRead marks all of the user's notifications as read
func (s *Service) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, recipientID); err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

// Delete removes a notification
func (s *Service) Delete(ctx context.Context, notificationID, recipientID uuid.UUID) error {
	if err := s.repo.Delete(ctx, notificationID, recipientID); err != nil {
		if err == domain.ErrNotificationNotFound {
			return err
		}
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}
