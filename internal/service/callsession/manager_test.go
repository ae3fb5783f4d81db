package callsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"unilink-backend/internal/domain"
	"unilink-backend/internal/service/invite"
	"unilink-backend/pkg/metrics"
	"unilink-backend/pkg/rtc"
	"unilink-backend/pkg/rtctoken"
)

// MockInviteSender is a mock implementation of InviteSender
type MockInviteSender struct {
	mock.Mock
}

func (m *MockInviteSender) SendDirectInvite(ctx context.Context, input *invite.DirectInviteInput) (*domain.CallNotification, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallNotification), args.Error(1)
}

func (m *MockInviteSender) SendGroupInvite(ctx context.Context, input *invite.GroupInviteInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

func (m *MockInviteSender) SendCallLink(ctx context.Context, input *invite.CallLinkInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

// stubIssuer is a controllable token issuer. A non-nil gate blocks Issue
// until the gate is closed, which lets tests interleave cancellation with
// an in-flight token fetch.
type stubIssuer struct {
	mu   sync.Mutex
	err  error
	gate chan struct{}
}

func (i *stubIssuer) Issue(req *rtctoken.Request) (string, error) {
	i.mu.Lock()
	gate := i.gate
	err := i.err
	i.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return "token-" + req.RoomID, nil
}

// fakeSession records disconnect calls and lets tests fire the
// server-side disconnect event
type fakeSession struct {
	mu          sync.Mutex
	done        chan struct{}
	once        sync.Once
	disconnects int
}

func newFakeSession() *fakeSession {
	return &fakeSession{done: make(chan struct{})}
}

func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	s.disconnects++
	s.mu.Unlock()
	s.dropConnection()
}

func (s *fakeSession) Disconnected() <-chan struct{} {
	return s.done
}

func (s *fakeSession) dropConnection() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeSession) disconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

// fakeRTC hands out fakeSessions and records join attempts
type fakeRTC struct {
	mu       sync.Mutex
	joinErr  error
	sessions []*fakeSession
}

func (c *fakeRTC) Join(ctx context.Context, token string, opts rtc.JoinOptions) (rtc.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joinErr != nil {
		return nil, c.joinErr
	}
	s := newFakeSession()
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeRTC) joinCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *fakeRTC) session(i int) *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[i]
}

func newTestManager(dispatcher InviteSender, issuer TokenIssuer, rtcClient rtc.Client) *Manager {
	return NewManager(dispatcher, issuer, rtcClient, metrics.NewMetrics("test"))
}

func TestInitCall(t *testing.T) {
	mockDispatcher := new(MockInviteSender)
	rtcClient := &fakeRTC{}
	manager := newTestManager(mockDispatcher, &stubIssuer{}, rtcClient)

	callerID := uuid.New()
	recipientID := uuid.New()
	expectedRoom := domain.DirectRoomID(callerID, recipientID)

	mockDispatcher.On("SendDirectInvite", mock.Anything, mock.MatchedBy(func(in *invite.DirectInviteInput) bool {
		return in.RecipientID == recipientID && in.RoomID == expectedRoom && in.CallType == domain.CallTypeVideo
	})).Return(&domain.CallNotification{NotificationID: uuid.New()}, nil)
	mockDispatcher.On("SendCallLink", mock.Anything, mock.AnythingOfType("*invite.CallLinkInput")).Return(nil)

	output, err := manager.InitCall(context.Background(), &InitCallInput{
		CallerID:    callerID,
		CallerName:  "Alice",
		RecipientID: recipientID,
		CallType:    domain.CallTypeVideo,
	})

	assert.NoError(t, err)
	assert.Equal(t, expectedRoom, output.RoomID)

	session := manager.CurrentSession(callerID)
	assert.True(t, session.IsActive())
	assert.Equal(t, expectedRoom, session.RoomID)

	mockDispatcher.AssertExpectations(t)
}

func TestInitCall_DeterministicRoomID(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	// Both directions derive the same room, so a re-call reuses it
	assert.Equal(t, domain.DirectRoomID(a, b), domain.DirectRoomID(b, a))
}

func TestInitCall_NotAuthenticated(t *testing.T) {
	manager := newTestManager(new(MockInviteSender), &stubIssuer{}, &fakeRTC{})

	_, err := manager.InitCall(context.Background(), &InitCallInput{
		RecipientID: uuid.New(),
		CallType:    domain.CallTypeAudio,
	})

	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestInitCall_InvalidRecipient(t *testing.T) {
	manager := newTestManager(new(MockInviteSender), &stubIssuer{}, &fakeRTC{})

	_, err := manager.InitCall(context.Background(), &InitCallInput{
		CallerID: uuid.New(),
		CallType: domain.CallTypeAudio,
	})

	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestInitCall_DispatchFailed(t *testing.T) {
	mockDispatcher := new(MockInviteSender)
	rtcClient := &fakeRTC{}
	manager := newTestManager(mockDispatcher, &stubIssuer{}, rtcClient)

	callerID := uuid.New()

	mockDispatcher.On("SendDirectInvite", mock.Anything, mock.Anything).
		Return(nil, errors.New("insert failed"))

	_, err := manager.InitCall(context.Background(), &InitCallInput{
		CallerID:    callerID,
		CallerName:  "Alice",
		RecipientID: uuid.New(),
		CallType:    domain.CallTypeVideo,
	})

	// The callee could never discover the room, so the session must not start
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Nil(t, manager.CurrentSession(callerID))
	assert.Equal(t, 0, rtcClient.joinCount())
}

func TestInitCall_CallLinkFailureIsNonFatal(t *testing.T) {
	mockDispatcher := new(MockInviteSender)
	manager := newTestManager(mockDispatcher, &stubIssuer{}, &fakeRTC{})

	callerID := uuid.New()

	mockDispatcher.On("SendDirectInvite", mock.Anything, mock.Anything).
		Return(&domain.CallNotification{NotificationID: uuid.New()}, nil)
	mockDispatcher.On("SendCallLink", mock.Anything, mock.Anything).
		Return(errors.New("cassandra unavailable"))

	output, err := manager.InitCall(context.Background(), &InitCallInput{
		CallerID:    callerID,
		CallerName:  "Alice",
		RecipientID: uuid.New(),
		CallType:    domain.CallTypeAudio,
	})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.True(t, manager.CurrentSession(callerID).IsActive())
}

func TestJoinCall_TokenUnavailable(t *testing.T) {
	rtcClient := &fakeRTC{}
	issuer := &stubIssuer{err: rtctoken.ErrNotConfigured}
	manager := newTestManager(new(MockInviteSender), issuer, rtcClient)

	userID := uuid.New()

	err := manager.JoinCall(context.Background(), &JoinCallInput{
		UserID:   userID,
		UserName: "Bob",
		RoomID:   "call_room",
		CallType: domain.CallTypeVideo,
	})

	assert.ErrorIs(t, err, ErrTokenUnavailable)
	assert.Nil(t, manager.CurrentSession(userID))
	assert.Equal(t, 0, rtcClient.joinCount())
}

func TestJoinCall_SDKConnectError(t *testing.T) {
	rtcClient := &fakeRTC{joinErr: errors.New("dial tcp: connection refused")}
	manager := newTestManager(new(MockInviteSender), &stubIssuer{}, rtcClient)

	userID := uuid.New()

	err := manager.JoinCall(context.Background(), &JoinCallInput{
		UserID:   userID,
		UserName: "Bob",
		RoomID:   "call_room",
		CallType: domain.CallTypeAudio,
	})

	// No orphaned Connecting state after a failed connect
	assert.ErrorIs(t, err, ErrSDKConnect)
	assert.Nil(t, manager.CurrentSession(userID))
}

func TestJoinCall_TearsDownExistingSession(t *testing.T) {
	rtcClient := &fakeRTC{}
	manager := newTestManager(new(MockInviteSender), &stubIssuer{}, rtcClient)

	userID := uuid.New()
	ctx := context.Background()

	err := manager.JoinCall(ctx, &JoinCallInput{UserID: userID, UserName: "Bob", RoomID: "room_one", CallType: domain.CallTypeAudio})
	assert.NoError(t, err)
	err = manager.JoinCall(ctx, &JoinCallInput{UserID: userID, UserName: "Bob", RoomID: "room_two", CallType: domain.CallTypeAudio})
	assert.NoError(t, err)

	// At most one active session: the first room was released before the
	// second connect
	assert.Equal(t, 1, manager.ActiveCount())
	assert.Equal(t, "room_two", manager.CurrentSession(userID).RoomID)
	assert.Equal(t, 1, rtcClient.session(0).disconnectCount())
}

func TestEndCurrentCall_Idempotent(t *testing.T) {
	rtcClient := &fakeRTC{}
	manager := newTestManager(new(MockInviteSender), &stubIssuer{}, rtcClient)

	userID := uuid.New()
	ctx := context.Background()

	assert.NoError(t, manager.JoinCall(ctx, &JoinCallInput{UserID: userID, UserName: "Bob", RoomID: "call_room", CallType: domain.CallTypeVideo}))

	assert.NoError(t, manager.EndCurrentCall(ctx, userID))
	assert.NoError(t, manager.EndCurrentCall(ctx, userID))
	assert.Nil(t, manager.CurrentSession(userID))
	assert.Equal(t, 1, rtcClient.session(0).disconnectCount())
}

func TestEndCurrentCall_WithoutSession(t *testing.T) {
	manager := newTestManager(new(MockInviteSender), &stubIssuer{}, &fakeRTC{})

	assert.NoError(t, manager.EndCurrentCall(context.Background(), uuid.New()))
}

func TestDisconnectEventDrivesTeardown(t *testing.T) {
	rtcClient := &fakeRTC{}
	manager := newTestManager(new(MockInviteSender), &stubIssuer{}, rtcClient)

	userID := uuid.New()
	ctx := context.Background()

	assert.NoError(t, manager.JoinCall(ctx, &JoinCallInput{UserID: userID, UserName: "Bob", RoomID: "call_room", CallType: domain.CallTypeAudio}))

	// Remote side drops the connection
	rtcClient.session(0).dropConnection()

	assert.Eventually(t, func() bool {
		return manager.CurrentSession(userID) == nil
	}, time.Second, 5*time.Millisecond)

	// Teardown already ran via the disconnect watcher; ending again is a no-op
	assert.NoError(t, manager.EndCurrentCall(ctx, userID))
}

func TestStaleJoinResultIsDiscarded(t *testing.T) {
	rtcClient := &fakeRTC{}
	gate := make(chan struct{})
	issuer := &stubIssuer{gate: gate}
	manager := newTestManager(new(MockInviteSender), issuer, rtcClient)

	userID := uuid.New()
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- manager.JoinCall(ctx, &JoinCallInput{UserID: userID, UserName: "Bob", RoomID: "room_stale", CallType: domain.CallTypeAudio})
	}()

	// Wait for the first attempt to reach Connecting, then supersede it
	// while its token fetch is still in flight
	assert.Eventually(t, func() bool {
		s := manager.CurrentSession(userID)
		return s != nil && s.State == domain.SessionConnecting
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, manager.EndCurrentCall(ctx, userID))

	issuer.mu.Lock()
	issuer.gate = nil
	issuer.mu.Unlock()
	close(gate)

	err := <-firstDone
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Nil(t, manager.CurrentSession(userID))

	// The stale attempt's room connection was released, not leaked
	assert.Eventually(t, func() bool {
		return rtcClient.joinCount() == 1 && rtcClient.session(0).disconnectCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestInitGroupCall(t *testing.T) {
	mockDispatcher := new(MockInviteSender)
	manager := newTestManager(mockDispatcher, &stubIssuer{}, &fakeRTC{})

	callerID := uuid.New()
	subchannelID := uuid.New()
	expectedRoom := domain.GroupRoomID(subchannelID)

	mockDispatcher.On("SendGroupInvite", mock.Anything, mock.MatchedBy(func(in *invite.GroupInviteInput) bool {
		return in.SubchannelID == subchannelID && in.RoomID == expectedRoom
	})).Return(4, nil)

	output, err := manager.InitGroupCall(context.Background(), &InitGroupCallInput{
		CallerID:     callerID,
		CallerName:   "Alice",
		SubchannelID: subchannelID,
		CallType:     domain.CallTypeAudio,
	})

	assert.NoError(t, err)
	assert.Equal(t, expectedRoom, output.RoomID)
	assert.Equal(t, 4, output.Notified)
	mockDispatcher.AssertExpectations(t)
}

func TestInitGroupCall_SubchannelNotFound(t *testing.T) {
	mockDispatcher := new(MockInviteSender)
	rtcClient := &fakeRTC{}
	manager := newTestManager(mockDispatcher, &stubIssuer{}, rtcClient)

	mockDispatcher.On("SendGroupInvite", mock.Anything, mock.Anything).
		Return(0, domain.ErrSubchannelNotFound)

	_, err := manager.InitGroupCall(context.Background(), &InitGroupCallInput{
		CallerID:     uuid.New(),
		CallerName:   "Alice",
		SubchannelID: uuid.New(),
		CallType:     domain.CallTypeVideo,
	})

	assert.ErrorIs(t, err, domain.ErrSubchannelNotFound)
	assert.Equal(t, 0, rtcClient.joinCount())
}
