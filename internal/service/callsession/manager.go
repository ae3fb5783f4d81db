// Package callsession owns the per-user call session lifecycle: room id
// derivation, invitation dispatch, token issuance, media server join and
// teardown. At most one session per user is active at any time.
package callsession

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unilink-backend/internal/domain"
	"unilink-backend/internal/service/invite"
	"unilink-backend/pkg/constants"
	"unilink-backend/pkg/logger"
	"unilink-backend/pkg/metrics"
	"unilink-backend/pkg/rtc"
	"unilink-backend/pkg/rtctoken"
)

// Sentinel errors classified per the API error taxonomy by the handlers
var (
	ErrNotAuthenticated = errors.New("no local user identity")
	ErrInvalidRecipient = errors.New("recipient id is empty")
	ErrInvalidRoom      = errors.New("room id is empty")
	ErrDispatchFailed   = errors.New("invitation dispatch failed")
	ErrTokenUnavailable = errors.New("call token unavailable")
	ErrSDKConnect       = errors.New("media server connection failed")
	ErrSuperseded       = errors.New("call attempt superseded")
)

// InviteSender dispatches call invitations before a session starts
type InviteSender interface {
	SendDirectInvite(ctx context.Context, input *invite.DirectInviteInput) (*domain.CallNotification, error)
	SendGroupInvite(ctx context.Context, input *invite.GroupInviteInput) (int, error)
	SendCallLink(ctx context.Context, input *invite.CallLinkInput) error
}

// TokenIssuer issues room-scoped access tokens
type TokenIssuer interface {
	Issue(req *rtctoken.Request) (string, error)
}

// userSession is the per-user session slot. gen increments on every attempt
// and on every teardown; async results carrying a stale gen are discarded.
type userSession struct {
	state      domain.SessionState
	roomID     string
	callType   domain.CallType
	userName   string
	gen        uint64
	rtcSession rtc.Session
}

// Manager mediates between caller intent, the invitation dispatcher, the
// token issuer and the media server client
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*userSession

	dispatcher InviteSender
	tokens     TokenIssuer
	rtc        rtc.Client
	metrics    *metrics.Metrics
}

// NewManager creates a new call session manager
func NewManager(dispatcher InviteSender, tokens TokenIssuer, rtcClient rtc.Client, m *metrics.Metrics) *Manager {
	return &Manager{
		sessions:   make(map[uuid.UUID]*userSession),
		dispatcher: dispatcher,
		tokens:     tokens,
		rtc:        rtcClient,
		metrics:    m,
	}
}

// InitCallInput contains direct call initiation data
type InitCallInput struct {
	CallerID      uuid.UUID
	CallerName    string
	RecipientID   uuid.UUID
	RecipientName string
	CallType      domain.CallType
}

// InitCallOutput contains the started session info
type InitCallOutput struct {
	RoomID   string          `json:"room_id"`
	CallType domain.CallType `json:"call_type"`
	Notified int             `json:"notified"`
}

// InitCall starts a direct call: derives the deterministic room id, notifies
// the recipient, appends the chat join link, then joins the room as caller.
// If the invite cannot be persisted the session never starts, since the
// callee could not discover the room.
func (m *Manager) InitCall(ctx context.Context, input *InitCallInput) (*InitCallOutput, error) {
	if input.CallerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if input.RecipientID == uuid.Nil {
		m.metrics.RecordCallFailure(string(input.CallType), "invalid_recipient")
		return nil, ErrInvalidRecipient
	}

	roomID := domain.DirectRoomID(input.CallerID, input.RecipientID)

	_, err := m.dispatcher.SendDirectInvite(ctx, &invite.DirectInviteInput{
		RecipientID: input.RecipientID,
		RoomID:      roomID,
		CallType:    input.CallType,
		CallerID:    input.CallerID,
		CallerName:  input.CallerName,
	})
	if err != nil {
		m.metrics.RecordCallFailure(string(input.CallType), "dispatch_failed")
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if err := m.dispatcher.SendCallLink(ctx, &invite.CallLinkInput{
		CallerID:    input.CallerID,
		CallerName:  input.CallerName,
		RecipientID: input.RecipientID,
		RoomID:      roomID,
		CallType:    input.CallType,
	}); err != nil {
		logger.Warn("Failed to send call link message",
			zap.String("room_id", roomID),
			zap.Error(err))
	}

	if err := m.join(ctx, input.CallerID, input.CallerName, roomID, input.CallType); err != nil {
		return nil, err
	}

	return &InitCallOutput{RoomID: roomID, CallType: input.CallType, Notified: 1}, nil
}

// InitGroupCallInput contains group call initiation data
type InitGroupCallInput struct {
	CallerID     uuid.UUID
	CallerName   string
	SubchannelID uuid.UUID
	CallType     domain.CallType
}

// InitGroupCall starts a group call in a subchannel's room and fans out
// invites to the channel members. Invite fan-out must complete before the
// caller's own session starts.
func (m *Manager) InitGroupCall(ctx context.Context, input *InitGroupCallInput) (*InitCallOutput, error) {
	if input.CallerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	roomID := domain.GroupRoomID(input.SubchannelID)

	notified, err := m.dispatcher.SendGroupInvite(ctx, &invite.GroupInviteInput{
		SubchannelID: input.SubchannelID,
		RoomID:       roomID,
		CallType:     input.CallType,
		CallerID:     input.CallerID,
		CallerName:   input.CallerName,
	})
	if err != nil {
		if err == domain.ErrSubchannelNotFound || err == domain.ErrChannelNotFound {
			m.metrics.RecordCallFailure(string(input.CallType), "lookup_miss")
			return nil, err
		}
		m.metrics.RecordCallFailure(string(input.CallType), "dispatch_failed")
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if err := m.join(ctx, input.CallerID, input.CallerName, roomID, input.CallType); err != nil {
		return nil, err
	}

	return &InitCallOutput{RoomID: roomID, CallType: input.CallType, Notified: notified}, nil
}

// JoinCallInput contains call join data
type JoinCallInput struct {
	UserID   uuid.UUID
	UserName string
	RoomID   string
	CallType domain.CallType
}

// JoinCall joins an existing room, typically from an accepted invitation.
// An already-active session is torn down first.
func (m *Manager) JoinCall(ctx context.Context, input *JoinCallInput) error {
	if input.UserID == uuid.Nil {
		return ErrNotAuthenticated
	}
	if input.RoomID == "" {
		return ErrInvalidRoom
	}
	return m.join(ctx, input.UserID, input.UserName, input.RoomID, input.CallType)
}

// join runs the Connecting half of the state machine: teardown of any
// existing session, token fetch, media server connect, Active transition.
// Every await point re-checks the generation so a superseded attempt can
// never flip state behind the current one's back.
func (m *Manager) join(ctx context.Context, userID uuid.UUID, userName, roomID string, callType domain.CallType) error {
	m.mu.Lock()
	s := m.sessions[userID]
	if s == nil {
		s = &userSession{state: domain.SessionIdle}
		m.sessions[userID] = s
	}
	m.teardownLocked(userID, s)

	s.gen++
	gen := s.gen
	s.state = domain.SessionConnecting
	s.roomID = roomID
	s.callType = callType
	s.userName = userName
	m.mu.Unlock()

	token, err := m.tokens.Issue(&rtctoken.Request{
		RoomID:   roomID,
		UserID:   userID.String(),
		UserName: userName,
		Audio:    true,
		Video:    callType == domain.CallTypeVideo,
	})
	if err != nil {
		m.rollback(userID, gen)
		m.metrics.RecordCallFailure(string(callType), "token_unavailable")
		return fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	joinCtx, cancel := context.WithTimeout(ctx, constants.RTCJoinTimeout)
	defer cancel()

	rtcSession, err := m.rtc.Join(joinCtx, token, rtc.JoinOptions{
		Audio: true,
		Video: callType == domain.CallTypeVideo,
	})
	if err != nil {
		m.rollback(userID, gen)
		m.metrics.RecordCallFailure(string(callType), "sdk_connect")
		return fmt.Errorf("%w: %v", ErrSDKConnect, err)
	}

	m.mu.Lock()
	if s.gen != gen || s.state != domain.SessionConnecting {
		m.mu.Unlock()
		rtcSession.Disconnect()
		return ErrSuperseded
	}
	s.state = domain.SessionActive
	s.rtcSession = rtcSession
	m.metrics.SetActiveCalls(m.activeCountLocked())
	m.mu.Unlock()

	m.metrics.RecordCall(string(callType), "started")
	logger.Info("Call session active",
		zap.String("user_id", userID.String()),
		zap.String("room_id", roomID),
		zap.String("call_type", string(callType)))

	go m.watchDisconnect(userID, gen, rtcSession)

	return nil
}

// EndCurrentCall tears down the user's session. Idempotent: ending an idle
// session is a no-op.
func (m *Manager) EndCurrentCall(_ context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrNotAuthenticated
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil || s.state == domain.SessionIdle {
		return nil
	}

	callType := s.callType
	m.teardownLocked(userID, s)
	m.metrics.RecordCall(string(callType), "ended")
	return nil
}

// CurrentSession returns a snapshot of the user's session, or nil when idle
func (m *Manager) CurrentSession(userID uuid.UUID) *domain.CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil || s.state == domain.SessionIdle {
		return nil
	}

	return &domain.CallSession{
		RoomID:          s.roomID,
		CallType:        s.callType,
		State:           s.state,
		ParticipantID:   userID,
		ParticipantName: s.userName,
	}
}

// ActiveCount returns the number of active sessions across all users
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked()
}

func (m *Manager) activeCountLocked() int {
	count := 0
	for _, s := range m.sessions {
		if s.state == domain.SessionActive {
			count++
		}
	}
	return count
}

// rollback clears Connecting state after a failed attempt, but only if the
// attempt is still the current one
func (m *Manager) rollback(userID uuid.UUID, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil || s.gen != gen {
		return
	}
	m.teardownLocked(userID, s)
}

// teardownLocked releases the media session and resets the slot to Idle.
// Bumping gen here invalidates any in-flight token fetch or join for this
// user, which is what de-duplicates teardown against the disconnect watcher.
func (m *Manager) teardownLocked(userID uuid.UUID, s *userSession) {
	if s.rtcSession != nil {
		s.rtcSession.Disconnect()
		s.rtcSession = nil
	}
	if s.state != domain.SessionIdle {
		logger.Debug("Call session torn down",
			zap.String("user_id", userID.String()),
			zap.String("room_id", s.roomID))
	}
	s.state = domain.SessionIdle
	s.roomID = ""
	s.gen++
	m.metrics.SetActiveCalls(m.activeCountLocked())
}

// watchDisconnect drives the same teardown as EndCurrentCall when the media
// server drops the connection. The generation check makes the teardown fire
// at most once per session attempt.
func (m *Manager) watchDisconnect(userID uuid.UUID, gen uint64, session rtc.Session) {
	<-session.Disconnected()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil || s.gen != gen {
		return
	}

	callType := s.callType
	m.teardownLocked(userID, s)
	m.metrics.RecordCall(string(callType), "ended")
	logger.Info("Call session ended by media server disconnect",
		zap.String("user_id", userID.String()))
}
