// Package push sends mobile and web push notifications for call invites.
// Delivery is best-effort: a push failure never fails the invite, the durable
// notification row is the source of truth.
package push

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unilink-backend/pkg/logger"
)

// Provider defines the interface for sending push notifications
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
}

// SendResult contains the result of a push notification send operation
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
	Errors        []error
}

// Notification represents a push notification
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal, low
	Sound    string            `json:"sound,omitempty"`
	Category string            `json:"category,omitempty"`
}

// CallInviteData contains the data payload for an incoming-call push
type CallInviteData struct {
	RoomID      string
	CallerID    uuid.UUID
	CallerName  string
	CallType    string
	ChannelName string
	IsGroupCall bool
}

// TokenType represents the type of push notification token
type TokenType string

const (
	TokenTypeFCM  TokenType = "fcm"  // Firebase Cloud Messaging
	TokenTypeAPNs TokenType = "apns" // Apple Push Notification Service
	TokenTypeWeb  TokenType = "web"  // Web Push
)

// Token represents a push notification token for a user
type Token struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Type      TokenType `json:"type"`
	DeviceID  string    `json:"device_id,omitempty"`
	Platform  string    `json:"platform,omitempty"` // ios, android, web
	Active    bool      `json:"active"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
}

// TokenRepository defines the interface for storing and retrieving push tokens
type TokenRepository interface {
	Store(ctx context.Context, token *Token) error
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error)
	GetByToken(ctx context.Context, token string) (*Token, error)
	Update(ctx context.Context, token *Token) error
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	MarkInactive(ctx context.Context, token string) error
}

// Service handles push notification operations
type Service struct {
	provider Provider
	repo     TokenRepository
}

// NewService creates a new push notification service
func NewService(provider Provider, repo TokenRepository) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
	}
}

// RegisterToken registers a push notification token for a user
func (s *Service) RegisterToken(ctx context.Context, token *Token) error {
	existing, err := s.repo.GetByToken(ctx, token.Token)
	if err == nil && existing != nil {
		existing.Active = true
		existing.DeviceID = token.DeviceID
		existing.Platform = token.Platform
		return s.repo.Update(ctx, existing)
	}

	token.Active = true
	return s.repo.Store(ctx, token)
}

// UnregisterToken removes a push notification token
func (s *Service) UnregisterToken(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}

// UnregisterAllTokens removes all tokens for a user
func (s *Service) UnregisterAllTokens(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// SendCallInvite sends an incoming-call push to every callee's active devices
func (s *Service) SendCallInvite(ctx context.Context, data *CallInviteData, calleeIDs []uuid.UUID) error {
	body := fmt.Sprintf("%s is calling you", data.CallerName)
	if data.IsGroupCall {
		body = fmt.Sprintf("%s started a call in %s", data.CallerName, data.ChannelName)
	}

	notification := &Notification{
		Title:    "Incoming Call",
		Body:     body,
		Priority: "high",
		Sound:    "default",
		Category: "INCOMING_CALL",
		Data: map[string]string{
			"type":        "call_invite",
			"room_id":     data.RoomID,
			"caller_id":   data.CallerID.String(),
			"caller_name": data.CallerName,
			"call_type":   data.CallType,
		},
	}

	allTokens := s.collectTokens(ctx, calleeIDs)
	if len(allTokens) == 0 {
		logger.Info("No active push tokens found for callees",
			zap.Int("callee_count", len(calleeIDs)))
		return nil
	}

	result, err := s.provider.Send(ctx, notification, allTokens)
	if err != nil {
		logger.Error("Failed to send call invite push",
			zap.String("room_id", data.RoomID),
			zap.Int("token_count", len(allTokens)),
			zap.Error(err))
		return fmt.Errorf("failed to send call invite push: %w", err)
	}

	logger.Info("Call invite push sent",
		zap.String("room_id", data.RoomID),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
		zap.Int("invalid_tokens", len(result.InvalidTokens)))

	if len(result.InvalidTokens) > 0 {
		s.handleInvalidTokens(ctx, result.InvalidTokens)
	}

	return nil
}

// SendMissedCall sends a missed-call push after an invite rings out
func (s *Service) SendMissedCall(ctx context.Context, callerName string, calleeIDs []uuid.UUID) error {
	notification := &Notification{
		Title:    "Missed Call",
		Body:     fmt.Sprintf("You missed a call from %s", callerName),
		Priority: "normal",
		Sound:    "default",
		Data: map[string]string{
			"type":        "missed_call",
			"caller_name": callerName,
		},
	}

	allTokens := s.collectTokens(ctx, calleeIDs)
	if len(allTokens) == 0 {
		return nil
	}

	result, err := s.provider.Send(ctx, notification, allTokens)
	if err != nil {
		return fmt.Errorf("failed to send missed call push: %w", err)
	}

	if len(result.InvalidTokens) > 0 {
		s.handleInvalidTokens(ctx, result.InvalidTokens)
	}

	return nil
}

// collectTokens gathers active token values for a set of users
func (s *Service) collectTokens(ctx context.Context, userIDs []uuid.UUID) []string {
	var allTokens []string
	for _, userID := range userIDs {
		tokens, err := s.repo.GetByUserID(ctx, userID)
		if err != nil {
			logger.Warn("Failed to get push tokens for user",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			continue
		}

		for _, token := range tokens {
			if token.Active {
				allTokens = append(allTokens, token.Token)
			}
		}
	}
	return allTokens
}

// handleInvalidTokens marks invalid tokens as inactive
func (s *Service) handleInvalidTokens(ctx context.Context, invalidTokens []string) {
	for _, tokenStr := range invalidTokens {
		if err := s.repo.MarkInactive(ctx, tokenStr); err != nil {
			logger.Warn("Failed to mark token as inactive", zap.Error(err))
		}
	}
}

// MockProvider is a mock implementation for development and testing
type MockProvider struct {
	NotificationsSent int
}

// Send implements the Provider interface
func (m *MockProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	m.NotificationsSent++

	logger.Debug("MockProvider: Sending notification",
		zap.String("title", notification.Title),
		zap.Int("token_count", len(tokens)))

	return &SendResult{
		SuccessCount: len(tokens),
	}, nil
}
