package push

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"unilink-backend/pkg/push"
	"unilink-backend/pkg/response"
)

// Handler handles push token registration requests
type Handler struct {
	service *push.Service
}

// NewHandler creates a new push handler
func NewHandler(service *push.Service) *Handler {
	return &Handler{service: service}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return uuid.Nil, false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}

// RegisterTokenRequest represents a push token registration request
type RegisterTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=fcm apns web"`
	DeviceID string `json:"device_id"`
	Platform string `json:"platform" binding:"omitempty,oneof=ios android web"`
}

// RegisterToken registers a device push token for the authenticated user
// POST /v1/push/tokens
func (h *Handler) RegisterToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	now := time.Now().Unix()
	token := &push.Token{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     req.Token,
		Type:      push.TokenType(req.Type),
		DeviceID:  req.DeviceID,
		Platform:  req.Platform,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.service.RegisterToken(c.Request.Context(), token); err != nil {
		response.InternalError(c, "Failed to register push token")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"message": "Push token registered"})
}

// UnregisterTokenRequest represents a push token removal request
type UnregisterTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// UnregisterToken removes a device push token
// DELETE /v1/push/tokens
func (h *Handler) UnregisterToken(c *gin.Context) {
	var req UnregisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if _, ok := currentUserID(c); !ok {
		return
	}

	if err := h.service.UnregisterToken(c.Request.Context(), req.Token); err != nil {
		response.InternalError(c, "Failed to unregister push token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Push token unregistered"})
}

// UnregisterAllTokens removes every push token the user has registered
// DELETE /v1/push/tokens/all
func (h *Handler) UnregisterAllTokens(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.service.UnregisterAllTokens(c.Request.Context(), userID); err != nil {
		response.InternalError(c, "Failed to unregister push tokens")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "All push tokens unregistered"})
}
