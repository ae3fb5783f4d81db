package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unilink-backend/internal/domain"
)

// ChannelRepository handles channel and subchannel reads.
// Channel membership is denormalized onto the channel row; the call service
// only reads it, membership writes belong to the channel service.
type ChannelRepository struct {
	db *pgxpool.Pool
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// GetByID retrieves a channel with its member list
func (r *ChannelRepository) GetByID(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error) {
	query := `
		SELECT channel_id, name, members, created_by, created_at
		FROM channels
		WHERE channel_id = $1
	`

	var c domain.Channel
	err := r.db.QueryRow(ctx, query, channelID).Scan(
		&c.ChannelID,
		&c.Name,
		&c.Members,
		&c.CreatedBy,
		&c.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return &c, nil
}

// GetSubchannel retrieves a subchannel by id
func (r *ChannelRepository) GetSubchannel(ctx context.Context, subchannelID uuid.UUID) (*domain.Subchannel, error) {
	query := `
		SELECT subchannel_id, channel_id, name, created_at
		FROM subchannels
		WHERE subchannel_id = $1
	`

	var s domain.Subchannel
	err := r.db.QueryRow(ctx, query, subchannelID).Scan(
		&s.SubchannelID,
		&s.ChannelID,
		&s.Name,
		&s.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrSubchannelNotFound
		}
		return nil, fmt.Errorf("failed to get subchannel: %w", err)
	}

	return &s, nil
}

// IsMember reports whether a user belongs to a channel
func (r *ChannelRepository) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	query := `SELECT $2::UUID = ANY(members) FROM channels WHERE channel_id = $1`

	var isMember bool
	err := r.db.QueryRow(ctx, query, channelID, userID).Scan(&isMember)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, domain.ErrChannelNotFound
		}
		return false, fmt.Errorf("failed to check channel membership: %w", err)
	}

	return isMember, nil
}
