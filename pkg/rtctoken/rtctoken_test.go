package rtctoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("api-key", "a-very-long-signing-secret-for-tests", time.Hour)

	token, err := issuer.Issue(&Request{
		RoomID:   "call_room_one",
		UserID:   "user-123",
		UserName: "Alice",
		Audio:    true,
		Video:    false,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := issuer.Parse(token)
	assert.NoError(t, err)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "api-key", claims.Issuer)
	assert.Equal(t, "call_room_one", claims.Video.Room)
	assert.True(t, claims.Video.RoomJoin)
	assert.True(t, claims.Video.CanSubscribe)
	assert.True(t, claims.Video.CanPublishAudio)
	assert.False(t, claims.Video.CanPublishVideo)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIssue_VideoGrant(t *testing.T) {
	issuer := NewIssuer("api-key", "a-very-long-signing-secret-for-tests", time.Hour)

	token, err := issuer.Issue(&Request{
		RoomID:   "call_group_abc",
		UserID:   "user-456",
		UserName: "Bob",
		Audio:    true,
		Video:    true,
	})
	assert.NoError(t, err)

	claims, err := issuer.Parse(token)
	assert.NoError(t, err)
	assert.True(t, claims.Video.CanPublishAudio)
	assert.True(t, claims.Video.CanPublishVideo)
}

func TestIssue_NotConfigured(t *testing.T) {
	issuer := NewIssuer("", "", time.Hour)

	_, err := issuer.Issue(&Request{RoomID: "room", UserID: "user"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestIssue_MissingFields(t *testing.T) {
	issuer := NewIssuer("api-key", "secret", time.Hour)

	_, err := issuer.Issue(&Request{UserID: "user"})
	assert.Error(t, err)

	_, err = issuer.Issue(&Request{RoomID: "room"})
	assert.Error(t, err)
}

func TestParse_WrongSecret(t *testing.T) {
	issuer := NewIssuer("api-key", "secret-one", time.Hour)
	token, err := issuer.Issue(&Request{RoomID: "room", UserID: "user"})
	assert.NoError(t, err)

	other := NewIssuer("api-key", "secret-two", time.Hour)
	_, err = other.Parse(token)
	assert.Error(t, err)
}
