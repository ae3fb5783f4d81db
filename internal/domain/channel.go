package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a study channel
// Maps to the CockroachDB channels table. Members is denormalized onto the
// channel record; invite fan-out reads it as-is, so a membership change racing
// an invite may notify a slightly stale set.
type Channel struct {
	ChannelID uuid.UUID   `json:"channel_id" db:"channel_id"`
	Name      string      `json:"name" db:"name"`
	Members   []uuid.UUID `json:"members" db:"members"`
	CreatedBy uuid.UUID   `json:"created_by" db:"created_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// Subchannel represents a topic inside a channel
// Maps to the CockroachDB subchannels table
type Subchannel struct {
	SubchannelID uuid.UUID `json:"subchannel_id" db:"subchannel_id"`
	ChannelID    uuid.UUID `json:"channel_id" db:"channel_id"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
