package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents conversation metadata
// Maps to the CockroachDB conversations table
type Conversation struct {
	ConversationID uuid.UUID `json:"conversation_id" db:"conversation_id"`
	Type           string    `json:"type" db:"type"` // direct, group
	CreatedBy      uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Message types
const (
	MessageTypeText     = "text"
	MessageTypeCallLink = "call_link"
)

// Message represents a chat message
// Stored in Cassandra with monthly bucketing for scalability
type Message struct {
	MessageID      uuid.UUID              `json:"message_id"`
	ConversationID uuid.UUID              `json:"conversation_id"`
	Bucket         int                    `json:"bucket"`
	SenderID       uuid.UUID              `json:"sender_id"`
	Content        string                 `json:"content"`
	MessageType    string                 `json:"message_type"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// CalculateBucket returns the monthly bucket for a timestamp (YYYYMM)
func CalculateBucket(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}
