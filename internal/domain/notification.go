package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind is the variant tag of a call notification.
// Values are stored in the call_notifications table and must stay stable.
type NotificationKind string

const (
	KindDirectCall NotificationKind = "direct_call"
	KindGroupCall  NotificationKind = "group_call"
)

// ParseNotificationKind validates a raw kind value read from storage or the wire.
// Unknown values are an error so new kinds cannot slip through unhandled.
func ParseNotificationKind(raw string) (NotificationKind, error) {
	switch NotificationKind(raw) {
	case KindDirectCall:
		return KindDirectCall, nil
	case KindGroupCall:
		return KindGroupCall, nil
	default:
		return "", fmt.Errorf("unknown notification kind %q", raw)
	}
}

// CallPayload carries everything a callee needs to join the call.
// RoomID is immutable once created; it is the sole join key shared
// between caller and callees.
type CallPayload struct {
	CallType    CallType `json:"call_type"`
	RoomID      string   `json:"room_id"`
	CallerName  string   `json:"caller_name"`
	ChannelName string   `json:"channel_name,omitempty"`
	IsGroupCall bool     `json:"is_group_call,omitempty"`
}

// CallNotification represents an invitation to join a call room.
// Maps to the CockroachDB call_notifications table.
type CallNotification struct {
	NotificationID uuid.UUID        `json:"notification_id" db:"notification_id"`
	RecipientID    uuid.UUID        `json:"recipient_id" db:"recipient_id"`
	Kind           NotificationKind `json:"kind" db:"kind"`
	Payload        CallPayload      `json:"payload" db:"payload"`
	IsRead         bool             `json:"is_read" db:"is_read"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	ReadAt         *time.Time       `json:"read_at,omitempty" db:"read_at"`
}

// CallNotificationCreate represents data needed to create a call notification
type CallNotificationCreate struct {
	RecipientID uuid.UUID
	Kind        NotificationKind
	Payload     CallPayload
}

// CallNotificationListResponse represents a paginated notification list
type CallNotificationListResponse struct {
	Notifications []CallNotification `json:"notifications"`
	UnreadCount   int                `json:"unread_count"`
	TotalCount    int                `json:"total_count"`
	HasMore       bool               `json:"has_more"`
}
