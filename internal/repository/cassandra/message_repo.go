package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"unilink-backend/internal/domain"
)

// MessageRepository handles message storage in Cassandra.
// Messages are partitioned by (conversation_id, bucket) with a monthly bucket.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// Save inserts a new message into Cassandra
func (r *MessageRepository) Save(message *domain.Message) error {
	if message.Bucket == 0 {
		message.Bucket = domain.CalculateBucket(message.CreatedAt)
	}

	if message.MessageID == uuid.Nil {
		message.MessageID = uuid.New()
	}

	query := `
		INSERT INTO messages (
			conversation_id, bucket, message_id, sender_id, content,
			message_type, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		message.ConversationID,
		message.Bucket,
		message.MessageID,
		message.SenderID,
		message.Content,
		message.MessageType,
		message.Metadata,
		message.CreatedAt,
	).Exec()

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// GetByConversation retrieves messages for a conversation within one bucket,
// newest first, with cursor-based pagination
func (r *MessageRepository) GetByConversation(
	conversationID uuid.UUID,
	bucket int,
	limit int,
	pageState []byte,
) ([]*domain.Message, []byte, error) {
	query := `
		SELECT conversation_id, bucket, message_id, sender_id, content,
		       message_type, metadata, created_at
		FROM messages
		WHERE conversation_id = ? AND bucket = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	iter := r.session.Query(query, conversationID, bucket, limit).PageState(pageState).Iter()

	var messages []*domain.Message
	for {
		message := &domain.Message{}
		if !iter.Scan(
			&message.ConversationID,
			&message.Bucket,
			&message.MessageID,
			&message.SenderID,
			&message.Content,
			&message.MessageType,
			&message.Metadata,
			&message.CreatedAt,
		) {
			break
		}
		messages = append(messages, message)
	}

	nextPageState := iter.PageState()
	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return messages, nextPageState, nil
}

// GetRecentMessages gets messages from the current bucket (most common case)
func (r *MessageRepository) GetRecentMessages(conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	currentBucket := domain.CalculateBucket(time.Now())
	messages, _, err := r.GetByConversation(conversationID, currentBucket, limit, nil)
	return messages, err
}
