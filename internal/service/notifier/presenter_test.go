package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"unilink-backend/internal/domain"
	"unilink-backend/internal/service/callsession"
	"unilink-backend/pkg/metrics"
)

// fakeSource is an in-memory notification store. Tests mutate it directly
// to simulate invites arriving and rows being read from another device.
type fakeSource struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*domain.CallNotification
	markedRead    []uuid.UUID
}

func newFakeSource() *fakeSource {
	return &fakeSource{notifications: make(map[uuid.UUID]*domain.CallNotification)}
}

func (f *fakeSource) add(createdAt time.Time, kind domain.NotificationKind, roomID string) *domain.CallNotification {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := &domain.CallNotification{
		NotificationID: uuid.New(),
		Kind:           kind,
		Payload:        domain.CallPayload{CallType: domain.CallTypeAudio, RoomID: roomID, CallerName: "Alice"},
		CreatedAt:      createdAt,
	}
	f.notifications[n.NotificationID] = n
	return n
}

func (f *fakeSource) GetUnread(_ context.Context, _ uuid.UUID) ([]domain.CallNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var unread []domain.CallNotification
	for _, n := range f.notifications {
		if !n.IsRead {
			unread = append(unread, *n)
		}
	}
	return unread, nil
}

func (f *fakeSource) MarkAsRead(_ context.Context, notificationID, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.markedRead = append(f.markedRead, notificationID)
	if n, ok := f.notifications[notificationID]; ok {
		n.IsRead = true
	}
	return nil
}

func (f *fakeSource) readIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.markedRead...)
}

// MockCallJoiner is a mock implementation of CallJoiner
type MockCallJoiner struct {
	mock.Mock
}

func (m *MockCallJoiner) JoinCall(ctx context.Context, input *callsession.JoinCallInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func newTestPresenter(source NotificationSource, joiner CallJoiner) *Presenter {
	return NewPresenter(uuid.New(), "Bob", source, joiner, metrics.NewMetrics("test"))
}

func TestRefresh_PresentsNewestUnread(t *testing.T) {
	source := newFakeSource()
	p := newTestPresenter(source, new(MockCallJoiner))

	base := time.Now()
	source.add(base.Add(-2*time.Minute), domain.KindDirectCall, "room_old")
	newest := source.add(base, domain.KindGroupCall, "room_new")
	source.add(base.Add(-time.Minute), domain.KindDirectCall, "room_mid")

	assert.NoError(t, p.Refresh(context.Background()))

	current, remaining := p.Current()
	assert.Equal(t, newest.NotificationID, current.NotificationID)
	assert.Equal(t, 30, remaining)
}

func TestRefresh_SinglePresentationAtATime(t *testing.T) {
	source := newFakeSource()
	p := newTestPresenter(source, new(MockCallJoiner))
	ctx := context.Background()

	base := time.Now()
	source.add(base, domain.KindDirectCall, "room_one")
	assert.NoError(t, p.Refresh(ctx))

	// Repeated refreshes keep the same single prompt up
	assert.NoError(t, p.Refresh(ctx))
	current, _ := p.Current()
	assert.NotNil(t, current)

	// A newer invite supersedes the displayed one
	newer := source.add(base.Add(time.Second), domain.KindDirectCall, "room_two")
	assert.NoError(t, p.Refresh(ctx))
	current, remaining := p.Current()
	assert.Equal(t, newer.NotificationID, current.NotificationID)
	assert.Equal(t, 30, remaining)
}

func TestRefresh_ClearsWhenReadElsewhere(t *testing.T) {
	source := newFakeSource()
	p := newTestPresenter(source, new(MockCallJoiner))
	ctx := context.Background()

	n := source.add(time.Now(), domain.KindDirectCall, "room_one")
	assert.NoError(t, p.Refresh(ctx))

	// Answered on another device: the row is read behind our back
	source.mu.Lock()
	source.notifications[n.NotificationID].IsRead = true
	source.mu.Unlock()

	assert.NoError(t, p.Refresh(ctx))
	current, _ := p.Current()
	assert.Nil(t, current)
}

func TestDismiss_SuppressesWithoutMarkingRead(t *testing.T) {
	source := newFakeSource()
	p := newTestPresenter(source, new(MockCallJoiner))
	ctx := context.Background()

	source.add(time.Now(), domain.KindDirectCall, "room_one")
	assert.NoError(t, p.Refresh(ctx))

	p.Dismiss()
	current, _ := p.Current()
	assert.Nil(t, current)
	assert.Empty(t, source.readIDs())

	// A dismissed notification is never re-presented
	assert.NoError(t, p.Refresh(ctx))
	current, _ = p.Current()
	assert.Nil(t, current)
}

func TestDismiss_OlderPromptSurfacesNext(t *testing.T) {
	source := newFakeSource()
	p := newTestPresenter(source, new(MockCallJoiner))
	ctx := context.Background()

	base := time.Now()
	older := source.add(base.Add(-time.Minute), domain.KindDirectCall, "room_old")
	source.add(base, domain.KindGroupCall, "room_new")

	assert.NoError(t, p.Refresh(ctx))
	p.Dismiss()

	assert.NoError(t, p.Refresh(ctx))
	current, _ := p.Current()
	assert.Equal(t, older.NotificationID, current.NotificationID)
}

func TestTick_TimeoutAutoDeclines(t *testing.T) {
	source := newFakeSource()
	joiner := new(MockCallJoiner)
	p := newTestPresenter(source, joiner)
	ctx := context.Background()

	n := source.add(time.Now(), domain.KindDirectCall, "room_one")
	assert.NoError(t, p.Refresh(ctx))

	// 30 simulated seconds with no user action
	for i := 0; i < 30; i++ {
		p.Tick(ctx)
	}

	current, _ := p.Current()
	assert.Nil(t, current)
	assert.Equal(t, []uuid.UUID{n.NotificationID}, source.readIDs())
	joiner.AssertNotCalled(t, "JoinCall")
}

func TestTick_NoPromptIsNoOp(t *testing.T) {
	p := newTestPresenter(newFakeSource(), new(MockCallJoiner))

	p.Tick(context.Background())

	current, remaining := p.Current()
	assert.Nil(t, current)
	assert.Equal(t, 0, remaining)
}

func TestAccept_JoinsAdvertisedRoom(t *testing.T) {
	source := newFakeSource()
	joiner := new(MockCallJoiner)
	p := newTestPresenter(source, joiner)
	ctx := context.Background()

	n := source.add(time.Now(), domain.KindDirectCall, "room_one")
	assert.NoError(t, p.Refresh(ctx))

	joiner.On("JoinCall", mock.Anything, mock.MatchedBy(func(in *callsession.JoinCallInput) bool {
		return in.RoomID == "room_one" && in.CallType == domain.CallTypeAudio && in.UserName == "Bob"
	})).Return(nil)

	assert.NoError(t, p.Accept(ctx))

	current, _ := p.Current()
	assert.Nil(t, current)
	assert.Equal(t, []uuid.UUID{n.NotificationID}, source.readIDs())
	joiner.AssertExpectations(t)
}

func TestAccept_WithoutPrompt(t *testing.T) {
	p := newTestPresenter(newFakeSource(), new(MockCallJoiner))

	assert.ErrorIs(t, p.Accept(context.Background()), ErrNothingPresented)
}

func TestDecline_MarksReadWithoutJoining(t *testing.T) {
	source := newFakeSource()
	joiner := new(MockCallJoiner)
	p := newTestPresenter(source, joiner)
	ctx := context.Background()

	n := source.add(time.Now(), domain.KindDirectCall, "room_one")
	assert.NoError(t, p.Refresh(ctx))

	assert.NoError(t, p.Decline(ctx))

	current, _ := p.Current()
	assert.Nil(t, current)
	assert.Equal(t, []uuid.UUID{n.NotificationID}, source.readIDs())
	joiner.AssertNotCalled(t, "JoinCall")
}

func TestEvents_PresentAndClear(t *testing.T) {
	source := newFakeSource()
	p := newTestPresenter(source, new(MockCallJoiner))
	ctx := context.Background()

	source.add(time.Now(), domain.KindDirectCall, "room_one")
	assert.NoError(t, p.Refresh(ctx))

	e := <-p.Events()
	assert.Equal(t, EventPresent, e.Type)
	assert.Equal(t, 30, e.RemainingSeconds)
	assert.Equal(t, "room_one", e.Notification.Payload.RoomID)

	p.Tick(ctx)
	e = <-p.Events()
	assert.Equal(t, EventCountdown, e.Type)
	assert.Equal(t, 29, e.RemainingSeconds)

	p.Dismiss()
	e = <-p.Events()
	assert.Equal(t, EventClear, e.Type)
}
