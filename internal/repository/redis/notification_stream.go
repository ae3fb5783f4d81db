package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"unilink-backend/internal/domain"
)

// NotificationStream delivers freshly created call notifications over Redis
// pub/sub so a ringing invite reaches the callee without waiting for the next
// poll. Delivery is best-effort; the durable copy lives in CockroachDB.
type NotificationStream struct {
	client *redis.Client
}

// NewNotificationStream creates a new notification stream
func NewNotificationStream(client *redis.Client) *NotificationStream {
	return &NotificationStream{client: client}
}

func notifyChannel(recipientID uuid.UUID) string {
	return fmt.Sprintf("call:notify:%s", recipientID)
}

// Publish pushes a notification onto the recipient's channel
func (s *NotificationStream) Publish(ctx context.Context, notification *domain.CallNotification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := s.client.Publish(ctx, notifyChannel(notification.RecipientID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Subscribe opens a subscription for one recipient. The caller owns the
// returned PubSub and must Close it.
func (s *NotificationStream) Subscribe(ctx context.Context, recipientID uuid.UUID) *redis.PubSub {
	return s.client.Subscribe(ctx, notifyChannel(recipientID))
}

// Decode parses a pub/sub payload back into a notification
func Decode(payload string) (*domain.CallNotification, error) {
	var n domain.CallNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &n, nil
}
