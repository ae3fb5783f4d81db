package invite

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"unilink-backend/internal/domain"
	"unilink-backend/pkg/metrics"
	"unilink-backend/pkg/push"
)

// MockNotificationRepository is a mock implementation of NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *domain.CallNotificationCreate) (*domain.CallNotification, error) {
	args := m.Called(ctx, notification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallNotification), args.Error(1)
}

// MockChannelRepository is a mock implementation of ChannelRepository
type MockChannelRepository struct {
	mock.Mock
}

func (m *MockChannelRepository) GetSubchannel(ctx context.Context, subchannelID uuid.UUID) (*domain.Subchannel, error) {
	args := m.Called(ctx, subchannelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subchannel), args.Error(1)
}

func (m *MockChannelRepository) GetByID(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Channel), args.Error(1)
}

// MockConversationRepository is a mock implementation of ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) CreateOrGetDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Save(message *domain.Message) error {
	args := m.Called(message)
	return args.Error(0)
}

// MockNotificationStream is a mock implementation of NotificationStream
type MockNotificationStream struct {
	mock.Mock
}

func (m *MockNotificationStream) Publish(ctx context.Context, notification *domain.CallNotification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

// MockPushSender is a mock implementation of PushSender
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) SendCallInvite(ctx context.Context, data *push.CallInviteData, calleeIDs []uuid.UUID) error {
	args := m.Called(ctx, data, calleeIDs)
	return args.Error(0)
}

type dispatcherMocks struct {
	notifications *MockNotificationRepository
	channels      *MockChannelRepository
	conversations *MockConversationRepository
	messages      *MockMessageRepository
	stream        *MockNotificationStream
	push          *MockPushSender
}

func newTestDispatcher() (*Dispatcher, *dispatcherMocks) {
	m := &dispatcherMocks{
		notifications: new(MockNotificationRepository),
		channels:      new(MockChannelRepository),
		conversations: new(MockConversationRepository),
		messages:      new(MockMessageRepository),
		stream:        new(MockNotificationStream),
		push:          new(MockPushSender),
	}
	d := NewDispatcher(m.notifications, m.channels, m.conversations, m.messages, m.stream, m.push, metrics.NewMetrics("test"))
	return d, m
}

func TestSendDirectInvite(t *testing.T) {
	d, m := newTestDispatcher()

	recipientID := uuid.New()
	callerID := uuid.New()
	stored := &domain.CallNotification{
		NotificationID: uuid.New(),
		RecipientID:    recipientID,
		Kind:           domain.KindDirectCall,
		Payload:        domain.CallPayload{CallType: domain.CallTypeVideo, RoomID: "call_a_b", CallerName: "Alice"},
	}

	m.notifications.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.CallNotificationCreate) bool {
		return c.RecipientID == recipientID &&
			c.Kind == domain.KindDirectCall &&
			c.Payload.RoomID == "call_a_b" &&
			c.Payload.CallerName == "Alice" &&
			!c.Payload.IsGroupCall
	})).Return(stored, nil)
	m.stream.On("Publish", mock.Anything, stored).Return(nil)
	m.push.On("SendCallInvite", mock.Anything, mock.Anything, []uuid.UUID{recipientID}).Return(nil)

	notification, err := d.SendDirectInvite(context.Background(), &DirectInviteInput{
		RecipientID: recipientID,
		RoomID:      "call_a_b",
		CallType:    domain.CallTypeVideo,
		CallerID:    callerID,
		CallerName:  "Alice",
	})

	assert.NoError(t, err)
	assert.Equal(t, stored.NotificationID, notification.NotificationID)
	m.notifications.AssertExpectations(t)
	m.stream.AssertExpectations(t)
	m.push.AssertExpectations(t)
}

func TestSendDirectInvite_InsertFails(t *testing.T) {
	d, m := newTestDispatcher()

	m.notifications.On("Create", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := d.SendDirectInvite(context.Background(), &DirectInviteInput{
		RecipientID: uuid.New(),
		RoomID:      "call_a_b",
		CallType:    domain.CallTypeAudio,
		CallerName:  "Alice",
	})

	assert.Error(t, err)
	m.stream.AssertNotCalled(t, "Publish")
	m.push.AssertNotCalled(t, "SendCallInvite")
}

func TestSendDirectInvite_PublishFailureIsNonFatal(t *testing.T) {
	d, m := newTestDispatcher()

	stored := &domain.CallNotification{NotificationID: uuid.New(), RecipientID: uuid.New()}
	m.notifications.On("Create", mock.Anything, mock.Anything).Return(stored, nil)
	m.stream.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	m.push.On("SendCallInvite", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("fcm down"))

	_, err := d.SendDirectInvite(context.Background(), &DirectInviteInput{
		RecipientID: stored.RecipientID,
		RoomID:      "call_a_b",
		CallType:    domain.CallTypeAudio,
		CallerName:  "Alice",
	})

	// The durable row landed; pub/sub and push failures only cost latency
	assert.NoError(t, err)
}

func TestSendGroupInvite_FanOutExcludesCaller(t *testing.T) {
	d, m := newTestDispatcher()

	callerID := uuid.New()
	members := []uuid.UUID{callerID, uuid.New(), uuid.New(), uuid.New()}
	subchannelID := uuid.New()
	channelID := uuid.New()

	m.channels.On("GetSubchannel", mock.Anything, subchannelID).
		Return(&domain.Subchannel{SubchannelID: subchannelID, ChannelID: channelID, Name: "lab-sessions"}, nil)
	m.channels.On("GetByID", mock.Anything, channelID).
		Return(&domain.Channel{ChannelID: channelID, Name: "Physics 101", Members: members}, nil)
	m.notifications.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.CallNotificationCreate) bool {
		return c.RecipientID != callerID && c.Kind == domain.KindGroupCall && c.Payload.IsGroupCall
	})).Return(&domain.CallNotification{NotificationID: uuid.New()}, nil).Times(3)
	m.stream.On("Publish", mock.Anything, mock.Anything).Return(nil)
	m.push.On("SendCallInvite", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	count, err := d.SendGroupInvite(context.Background(), &GroupInviteInput{
		SubchannelID: subchannelID,
		RoomID:       domain.GroupRoomID(subchannelID),
		CallType:     domain.CallTypeAudio,
		CallerID:     callerID,
		CallerName:   "Alice",
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	m.notifications.AssertExpectations(t)
}

func TestSendGroupInvite_ContinuesPastMemberFailure(t *testing.T) {
	d, m := newTestDispatcher()

	callerID := uuid.New()
	badMember := uuid.New()
	goodMember := uuid.New()
	subchannelID := uuid.New()
	channelID := uuid.New()

	m.channels.On("GetSubchannel", mock.Anything, subchannelID).
		Return(&domain.Subchannel{SubchannelID: subchannelID, ChannelID: channelID}, nil)
	m.channels.On("GetByID", mock.Anything, channelID).
		Return(&domain.Channel{ChannelID: channelID, Name: "Physics 101", Members: []uuid.UUID{callerID, badMember, goodMember}}, nil)
	m.notifications.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.CallNotificationCreate) bool {
		return c.RecipientID == badMember
	})).Return(nil, errors.New("constraint violation"))
	m.notifications.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.CallNotificationCreate) bool {
		return c.RecipientID == goodMember
	})).Return(&domain.CallNotification{NotificationID: uuid.New()}, nil)
	m.stream.On("Publish", mock.Anything, mock.Anything).Return(nil)
	m.push.On("SendCallInvite", mock.Anything, mock.Anything, []uuid.UUID{goodMember}).Return(nil)

	count, err := d.SendGroupInvite(context.Background(), &GroupInviteInput{
		SubchannelID: subchannelID,
		RoomID:       domain.GroupRoomID(subchannelID),
		CallType:     domain.CallTypeVideo,
		CallerID:     callerID,
		CallerName:   "Alice",
	})

	// One bad member record must not block notifying the others
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	m.push.AssertExpectations(t)
}

func TestSendGroupInvite_SubchannelNotFound(t *testing.T) {
	d, m := newTestDispatcher()

	subchannelID := uuid.New()
	m.channels.On("GetSubchannel", mock.Anything, subchannelID).
		Return(nil, domain.ErrSubchannelNotFound)

	_, err := d.SendGroupInvite(context.Background(), &GroupInviteInput{
		SubchannelID: subchannelID,
		RoomID:       domain.GroupRoomID(subchannelID),
		CallType:     domain.CallTypeAudio,
		CallerID:     uuid.New(),
	})

	assert.ErrorIs(t, err, domain.ErrSubchannelNotFound)
	m.notifications.AssertNotCalled(t, "Create")
}

func TestSendGroupInvite_ChannelNotFound(t *testing.T) {
	d, m := newTestDispatcher()

	subchannelID := uuid.New()
	channelID := uuid.New()
	m.channels.On("GetSubchannel", mock.Anything, subchannelID).
		Return(&domain.Subchannel{SubchannelID: subchannelID, ChannelID: channelID}, nil)
	m.channels.On("GetByID", mock.Anything, channelID).
		Return(nil, domain.ErrChannelNotFound)

	_, err := d.SendGroupInvite(context.Background(), &GroupInviteInput{
		SubchannelID: subchannelID,
		RoomID:       domain.GroupRoomID(subchannelID),
		CallType:     domain.CallTypeAudio,
		CallerID:     uuid.New(),
	})

	assert.ErrorIs(t, err, domain.ErrChannelNotFound)
	m.notifications.AssertNotCalled(t, "Create")
}

func TestSendCallLink(t *testing.T) {
	d, m := newTestDispatcher()

	callerID := uuid.New()
	recipientID := uuid.New()
	conversationID := uuid.New()

	m.conversations.On("CreateOrGetDirect", mock.Anything, callerID, recipientID).
		Return(&domain.Conversation{ConversationID: conversationID, Type: "direct"}, nil)
	m.messages.On("Save", mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.ConversationID == conversationID &&
			msg.SenderID == callerID &&
			msg.MessageType == domain.MessageTypeCallLink &&
			msg.Metadata["room_id"] == "call_a_b"
	})).Return(nil)

	err := d.SendCallLink(context.Background(), &CallLinkInput{
		CallerID:    callerID,
		CallerName:  "Alice",
		RecipientID: recipientID,
		RoomID:      "call_a_b",
		CallType:    domain.CallTypeVideo,
	})

	assert.NoError(t, err)
	m.messages.AssertExpectations(t)
}

func TestSendCallLink_ConversationLookupFails(t *testing.T) {
	d, m := newTestDispatcher()

	m.conversations.On("CreateOrGetDirect", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout"))

	err := d.SendCallLink(context.Background(), &CallLinkInput{
		CallerID:    uuid.New(),
		RecipientID: uuid.New(),
		RoomID:      "call_a_b",
		CallType:    domain.CallTypeAudio,
	})

	assert.Error(t, err)
	m.messages.AssertNotCalled(t, "Save")
}
