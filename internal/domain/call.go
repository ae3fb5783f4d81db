package domain

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// CallType represents the media variant of a call
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// ParseCallType validates a raw call type value
func ParseCallType(raw string) (CallType, error) {
	switch CallType(raw) {
	case CallTypeAudio:
		return CallTypeAudio, nil
	case CallTypeVideo:
		return CallTypeVideo, nil
	default:
		return "", fmt.Errorf("unknown call type %q", raw)
	}
}

// SessionState is the lifecycle state of the local call session
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionConnecting SessionState = "connecting"
	SessionActive     SessionState = "active"
)

// CallSession is the local, ephemeral record of participating in a room.
// It is owned by the call session manager and never persisted.
type CallSession struct {
	RoomID          string       `json:"room_id"`
	CallType        CallType     `json:"call_type"`
	State           SessionState `json:"state"`
	ParticipantID   uuid.UUID    `json:"participant_id"`
	ParticipantName string       `json:"participant_name"`
}

// IsActive reports whether the session holds a live room connection
func (s *CallSession) IsActive() bool {
	return s != nil && s.State == SessionActive
}

// DirectRoomID derives the room id for a 1:1 call from the sorted pair of
// participant ids. Both sides of the pair compute the same id, so repeated
// calls between the same two users reuse the same room.
func DirectRoomID(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return fmt.Sprintf("call_%s_%s", ids[0], ids[1])
}

// GroupRoomID derives the room id for a group call from the subchannel
// identity. The subchannel supplies the room; membership supplies the callees.
func GroupRoomID(subchannelID uuid.UUID) string {
	return fmt.Sprintf("call_group_%s", subchannelID)
}
