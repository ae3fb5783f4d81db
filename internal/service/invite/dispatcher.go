// Package invite translates a call-initiation intent into durable,
// discoverable state for the callees: one notification row per recipient,
// a best-effort pub/sub nudge, a best-effort push, and for direct calls a
// chat message carrying the join link.
package invite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unilink-backend/internal/domain"
	"unilink-backend/pkg/logger"
	"unilink-backend/pkg/metrics"
	"unilink-backend/pkg/push"
)

// NotificationRepository persists call notifications
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.CallNotificationCreate) (*domain.CallNotification, error)
}

// ChannelRepository resolves subchannels and channel membership
type ChannelRepository interface {
	GetSubchannel(ctx context.Context, subchannelID uuid.UUID) (*domain.Subchannel, error)
	GetByID(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error)
}

// ConversationRepository resolves direct conversations for the chat link
type ConversationRepository interface {
	CreateOrGetDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
}

// MessageRepository appends chat messages
type MessageRepository interface {
	Save(message *domain.Message) error
}

// NotificationStream pushes fresh notifications to connected clients
type NotificationStream interface {
	Publish(ctx context.Context, notification *domain.CallNotification) error
}

// PushSender fans out mobile/web push notifications
type PushSender interface {
	SendCallInvite(ctx context.Context, data *push.CallInviteData, calleeIDs []uuid.UUID) error
}

// Dispatcher handles call invitation fan-out
type Dispatcher struct {
	notifications NotificationRepository
	channels      ChannelRepository
	conversations ConversationRepository
	messages      MessageRepository
	stream        NotificationStream
	push          PushSender
	metrics       *metrics.Metrics
}

// NewDispatcher creates a new invitation dispatcher
func NewDispatcher(
	notifications NotificationRepository,
	channels ChannelRepository,
	conversations ConversationRepository,
	messages MessageRepository,
	stream NotificationStream,
	pushSender PushSender,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		channels:      channels,
		conversations: conversations,
		messages:      messages,
		stream:        stream,
		push:          pushSender,
		metrics:       m,
	}
}

// DirectInviteInput contains direct invitation data
type DirectInviteInput struct {
	RecipientID uuid.UUID
	RoomID      string
	CallType    domain.CallType
	CallerID    uuid.UUID
	CallerName  string
}

// SendDirectInvite inserts exactly one direct-call notification for the
// recipient. The insert is the atomicity boundary: either the full
// notification lands or the invite fails.
func (d *Dispatcher) SendDirectInvite(ctx context.Context, input *DirectInviteInput) (*domain.CallNotification, error) {
	create := &domain.CallNotificationCreate{
		RecipientID: input.RecipientID,
		Kind:        domain.KindDirectCall,
		Payload: domain.CallPayload{
			CallType:   input.CallType,
			RoomID:     input.RoomID,
			CallerName: input.CallerName,
		},
	}

	notification, err := d.notifications.Create(ctx, create)
	if err != nil {
		d.metrics.RecordInviteDispatch("direct", "error")
		return nil, fmt.Errorf("failed to dispatch direct invite: %w", err)
	}

	d.metrics.RecordInviteDispatch("direct", "ok")
	d.publishBestEffort(ctx, notification)
	d.pushBestEffort(ctx, input.CallerID, input.CallerName, notification, []uuid.UUID{input.RecipientID})

	logger.Info("Direct call invite dispatched",
		zap.String("recipient_id", input.RecipientID.String()),
		zap.String("room_id", input.RoomID),
		zap.String("call_type", string(input.CallType)))

	return notification, nil
}

// GroupInviteInput contains group invitation data
type GroupInviteInput struct {
	SubchannelID uuid.UUID
	RoomID       string
	CallType     domain.CallType
	CallerID     uuid.UUID
	CallerName   string
}

// SendGroupInvite resolves the subchannel's parent channel, excludes the
// caller from the member set and inserts one group-call notification per
// remaining member. A single failed insert does not block the others; the
// returned count is the number of notifications actually created.
func (d *Dispatcher) SendGroupInvite(ctx context.Context, input *GroupInviteInput) (int, error) {
	subchannel, err := d.channels.GetSubchannel(ctx, input.SubchannelID)
	if err != nil {
		if err == domain.ErrSubchannelNotFound {
			return 0, err
		}
		return 0, fmt.Errorf("failed to resolve subchannel: %w", err)
	}

	channel, err := d.channels.GetByID(ctx, subchannel.ChannelID)
	if err != nil {
		if err == domain.ErrChannelNotFound {
			return 0, err
		}
		return 0, fmt.Errorf("failed to resolve channel: %w", err)
	}

	payload := domain.CallPayload{
		CallType:    input.CallType,
		RoomID:      input.RoomID,
		CallerName:  input.CallerName,
		ChannelName: channel.Name,
		IsGroupCall: true,
	}

	created := 0
	var notified []uuid.UUID
	for _, memberID := range channel.Members {
		if memberID == input.CallerID {
			continue
		}

		notification, err := d.notifications.Create(ctx, &domain.CallNotificationCreate{
			RecipientID: memberID,
			Kind:        domain.KindGroupCall,
			Payload:     payload,
		})
		if err != nil {
			d.metrics.RecordInviteDispatch("group", "error")
			logger.Warn("Failed to create group invite for member",
				zap.String("member_id", memberID.String()),
				zap.String("room_id", input.RoomID),
				zap.Error(err))
			continue
		}

		created++
		notified = append(notified, memberID)
		d.metrics.RecordInviteDispatch("group", "ok")
		d.publishBestEffort(ctx, notification)
	}

	d.metrics.RecordInviteFanout(created)

	if len(notified) > 0 {
		err := d.push.SendCallInvite(ctx, &push.CallInviteData{
			RoomID:      input.RoomID,
			CallerID:    input.CallerID,
			CallerName:  input.CallerName,
			CallType:    string(input.CallType),
			ChannelName: channel.Name,
			IsGroupCall: true,
		}, notified)
		if err != nil {
			logger.Warn("Failed to send group invite push", zap.Error(err))
		}
	}

	logger.Info("Group call invite dispatched",
		zap.String("subchannel_id", input.SubchannelID.String()),
		zap.String("room_id", input.RoomID),
		zap.Int("notified", created),
		zap.Int("members", len(channel.Members)))

	return created, nil
}

// CallLinkInput contains data for the chat join-link message
type CallLinkInput struct {
	CallerID    uuid.UUID
	CallerName  string
	RecipientID uuid.UUID
	RoomID      string
	CallType    domain.CallType
}

// SendCallLink appends a chat message with a joinable call link to the
// direct conversation between caller and recipient. Callers treat failures
// as non-fatal; the notification row is the authoritative invite.
func (d *Dispatcher) SendCallLink(ctx context.Context, input *CallLinkInput) error {
	conversation, err := d.conversations.CreateOrGetDirect(ctx, input.CallerID, input.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve direct conversation: %w", err)
	}

	message := &domain.Message{
		ConversationID: conversation.ConversationID,
		SenderID:       input.CallerID,
		Content:        fmt.Sprintf("%s started a %s call. Tap to join: /call/%s", input.CallerName, input.CallType, input.RoomID),
		MessageType:    domain.MessageTypeCallLink,
		Metadata: map[string]interface{}{
			"room_id":   input.RoomID,
			"call_type": string(input.CallType),
		},
		CreatedAt: time.Now(),
	}

	if err := d.messages.Save(message); err != nil {
		return fmt.Errorf("failed to save call link message: %w", err)
	}

	return nil
}

// publishBestEffort pushes the notification onto the pub/sub stream.
// The durable row already exists, so a publish failure only costs latency
// (the callee falls back to the poll).
func (d *Dispatcher) publishBestEffort(ctx context.Context, notification *domain.CallNotification) {
	if err := d.stream.Publish(ctx, notification); err != nil {
		logger.Warn("Failed to publish call notification",
			zap.String("notification_id", notification.NotificationID.String()),
			zap.Error(err))
	}
}

func (d *Dispatcher) pushBestEffort(ctx context.Context, callerID uuid.UUID, callerName string, notification *domain.CallNotification, recipients []uuid.UUID) {
	err := d.push.SendCallInvite(ctx, &push.CallInviteData{
		RoomID:     notification.Payload.RoomID,
		CallerID:   callerID,
		CallerName: callerName,
		CallType:   string(notification.Payload.CallType),
	}, recipients)
	if err != nil {
		logger.Warn("Failed to send call invite push", zap.Error(err))
	}
}
