package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unilink-backend/internal/domain"
)

// ConversationRepository handles conversation metadata operations
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetByID retrieves a conversation by id
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT conversation_id, type, created_by, created_at
		FROM conversations
		WHERE conversation_id = $1
	`

	var c domain.Conversation
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&c.ConversationID,
		&c.Type,
		&c.CreatedBy,
		&c.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &c, nil
}

// FindDirect finds the direct conversation between two users
func (r *ConversationRepository) FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT c.conversation_id, c.type, c.created_by, c.created_at
		FROM conversations c
		JOIN conversation_participants p1 ON p1.conversation_id = c.conversation_id AND p1.user_id = $1
		JOIN conversation_participants p2 ON p2.conversation_id = c.conversation_id AND p2.user_id = $2
		WHERE c.type = 'direct'
		LIMIT 1
	`

	var c domain.Conversation
	err := r.db.QueryRow(ctx, query, userA, userB).Scan(
		&c.ConversationID,
		&c.Type,
		&c.CreatedBy,
		&c.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find direct conversation: %w", err)
	}

	return &c, nil
}

// CreateOrGetDirect returns the direct conversation between two users,
// creating it on first contact
func (r *ConversationRepository) CreateOrGetDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	existing, err := r.FindDirect(ctx, userA, userB)
	if err == nil {
		return existing, nil
	}
	if err != domain.ErrConversationNotFound {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO conversations (type, created_by, created_at)
		VALUES ('direct', $1, NOW())
		RETURNING conversation_id, type, created_by, created_at
	`

	var c domain.Conversation
	err = tx.QueryRow(ctx, query, userA).Scan(
		&c.ConversationID,
		&c.Type,
		&c.CreatedBy,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	participantQuery := `
		INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
		VALUES ($1, $2, NOW()), ($1, $3, NOW())
	`
	if _, err := tx.Exec(ctx, participantQuery, c.ConversationID, userA, userB); err != nil {
		return nil, fmt.Errorf("failed to add participants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &c, nil
}

// IsParticipant reports whether a user belongs to a conversation
func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}

	return exists, nil
}
