// Package notifier presents incoming-call prompts: at most one prompt per
// user at a time, every prompt resolves within a bounded time (accept,
// decline, dismiss, or a 30 second ring-out that counts as a decline).
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unilink-backend/internal/domain"
	"unilink-backend/internal/service/callsession"
	"unilink-backend/pkg/constants"
	"unilink-backend/pkg/logger"
	"unilink-backend/pkg/metrics"
)

// ErrNothingPresented is returned when accept/decline arrives with no prompt up
var ErrNothingPresented = errors.New("no incoming call is presented")

// NotificationSource reads and acknowledges call notifications
type NotificationSource interface {
	GetUnread(ctx context.Context, recipientID uuid.UUID) ([]domain.CallNotification, error)
	MarkAsRead(ctx context.Context, notificationID, recipientID uuid.UUID) error
}

// CallJoiner joins the call room on accept
type CallJoiner interface {
	JoinCall(ctx context.Context, input *callsession.JoinCallInput) error
}

// EventType tags a presentation event sent to the client
type EventType string

const (
	EventPresent   EventType = "present"
	EventCountdown EventType = "countdown"
	EventClear     EventType = "clear"
)

// Event is one presentation state change streamed to the client
type Event struct {
	Type             EventType                `json:"type"`
	Notification     *domain.CallNotification `json:"notification,omitempty"`
	RemainingSeconds int                      `json:"remaining_seconds,omitempty"`
}

// Presenter owns one user's incoming-call prompt. Tick and Refresh are
// exposed directly so the countdown and selection logic run on simulated
// time in tests; Run drives them from real timers in production.
type Presenter struct {
	userID   uuid.UUID
	userName string
	source   NotificationSource
	joiner   CallJoiner
	metrics  *metrics.Metrics

	mu        sync.Mutex
	current   *domain.CallNotification
	remaining int
	dismissed map[uuid.UUID]struct{}

	events chan Event
}

// NewPresenter creates a presenter for one user
func NewPresenter(userID uuid.UUID, userName string, source NotificationSource, joiner CallJoiner, m *metrics.Metrics) *Presenter {
	return &Presenter{
		userID:    userID,
		userName:  userName,
		source:    source,
		joiner:    joiner,
		metrics:   m,
		dismissed: make(map[uuid.UUID]struct{}),
		events:    make(chan Event, 16),
	}
}

// Events streams presentation changes to the client connection
func (p *Presenter) Events() <-chan Event {
	return p.events
}

// Refresh re-reads the unread set and applies the selection rule: among
// unread call notifications not in the dismissed set, a newer arrival
// supersedes the current prompt, a prompt whose row was read elsewhere
// (answered on another device) is dropped, and an empty set clears.
func (p *Presenter) Refresh(ctx context.Context) error {
	unread, err := p.source.GetUnread(ctx, p.userID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	currentStillPending := false
	var newest *domain.CallNotification
	for i := range unread {
		n := &unread[i]
		if _, ok := p.dismissed[n.NotificationID]; ok {
			continue
		}
		if _, err := domain.ParseNotificationKind(string(n.Kind)); err != nil {
			logger.Warn("Skipping notification with unknown kind",
				zap.String("notification_id", n.NotificationID.String()),
				zap.Error(err))
			continue
		}
		if p.current != nil && n.NotificationID == p.current.NotificationID {
			currentStillPending = true
			continue
		}
		if newest == nil || n.CreatedAt.After(newest.CreatedAt) {
			newest = n
		}
	}

	switch {
	case newest != nil && (p.current == nil || newest.CreatedAt.After(p.current.CreatedAt)):
		p.presentLocked(newest)
	case p.current != nil && !currentStillPending:
		if newest != nil {
			p.presentLocked(newest)
		} else {
			p.clearLocked()
		}
	}

	return nil
}

// Tick advances the ring countdown by one second. Reaching zero resolves
// the prompt as a decline.
func (p *Presenter) Tick(ctx context.Context) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return
	}

	p.remaining--
	if p.remaining > 0 {
		remaining := p.remaining
		p.mu.Unlock()
		p.emit(Event{Type: EventCountdown, RemainingSeconds: remaining})
		return
	}

	expired := p.current
	p.clearLocked()
	p.mu.Unlock()

	p.metrics.RecordPresenterTimeout()
	logger.Info("Incoming call rang out",
		zap.String("user_id", p.userID.String()),
		zap.String("notification_id", expired.NotificationID.String()))

	if err := p.source.MarkAsRead(ctx, expired.NotificationID, p.userID); err != nil {
		logger.Warn("Failed to mark rung-out notification as read", zap.Error(err))
	}
}

// Accept marks the prompt read and joins the advertised room
func (p *Presenter) Accept(ctx context.Context) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNothingPresented
	}
	accepted := p.current
	p.clearLocked()
	p.mu.Unlock()

	if err := p.source.MarkAsRead(ctx, accepted.NotificationID, p.userID); err != nil {
		logger.Warn("Failed to mark accepted notification as read", zap.Error(err))
	}

	return p.joiner.JoinCall(ctx, &callsession.JoinCallInput{
		UserID:   p.userID,
		UserName: p.userName,
		RoomID:   accepted.Payload.RoomID,
		CallType: accepted.Payload.CallType,
	})
}

// Decline marks the prompt read and clears it without joining
func (p *Presenter) Decline(ctx context.Context) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNothingPresented
	}
	declined := p.current
	p.clearLocked()
	p.mu.Unlock()

	return p.source.MarkAsRead(ctx, declined.NotificationID, p.userID)
}

// Dismiss suppresses the prompt for the rest of the client session without
// marking it read: "I saw it but chose not to decide" rather than a decline
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return
	}
	p.dismissed[p.current.NotificationID] = struct{}{}
	p.clearLocked()
}

// Current returns a snapshot of the displayed prompt, or nil
func (p *Presenter) Current() (*domain.CallNotification, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, 0
	}
	snapshot := *p.current
	return &snapshot, p.remaining
}

// Run drives the presenter from real timers until ctx is cancelled: a one
// second countdown tick, a slow poll as the fallback path, and the pub/sub
// nudge channel for near-real-time ringing.
func (p *Presenter) Run(ctx context.Context, updates <-chan *domain.CallNotification) {
	if err := p.Refresh(ctx); err != nil {
		logger.Warn("Initial notification refresh failed",
			zap.String("user_id", p.userID.String()),
			zap.Error(err))
	}

	countdown := time.NewTicker(constants.CountdownTick)
	defer countdown.Stop()
	poll := time.NewTicker(constants.NotificationPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-countdown.C:
			p.Tick(ctx)
		case <-poll.C:
			if err := p.Refresh(ctx); err != nil {
				logger.Warn("Notification refresh failed", zap.Error(err))
			}
		case _, ok := <-updates:
			if !ok {
				return
			}
			// Re-read the store instead of trusting the pushed copy, so a
			// row already read on another device is never presented.
			if err := p.Refresh(ctx); err != nil {
				logger.Warn("Notification refresh failed", zap.Error(err))
			}
		}
	}
}

func (p *Presenter) presentLocked(n *domain.CallNotification) {
	snapshot := *n
	p.current = &snapshot
	p.remaining = int(constants.IncomingCallTimeout / time.Second)
	p.emit(Event{Type: EventPresent, Notification: &snapshot, RemainingSeconds: p.remaining})
}

func (p *Presenter) clearLocked() {
	p.current = nil
	p.remaining = 0
	p.emit(Event{Type: EventClear})
}

// emit never blocks; a slow client just misses intermediate countdown events
func (p *Presenter) emit(e Event) {
	select {
	case p.events <- e:
	default:
	}
}
