package call

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"unilink-backend/internal/domain"
	"unilink-backend/internal/service/callsession"
	"unilink-backend/pkg/apperrors"
	"unilink-backend/pkg/response"
)

// Handler handles call orchestration HTTP requests
type Handler struct {
	manager *callsession.Manager
}

// NewHandler creates a new call handler
func NewHandler(manager *callsession.Manager) *Handler {
	return &Handler{manager: manager}
}

// identity pulls the authenticated user from the Gin context
func identity(c *gin.Context) (uuid.UUID, string, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return uuid.Nil, "", false
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid user ID")
		return uuid.Nil, "", false
	}

	displayName := c.GetString("display_name")
	if displayName == "" {
		displayName = c.GetString("username")
	}

	return userID, displayName, true
}

// respondCallError maps service sentinel errors onto the API error taxonomy
func respondCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, callsession.ErrNotAuthenticated):
		response.AppError(c, apperrors.NotAuthenticatedError())
	case errors.Is(err, callsession.ErrInvalidRecipient):
		response.AppError(c, apperrors.InvalidRecipientError())
	case errors.Is(err, callsession.ErrInvalidRoom):
		response.AppError(c, apperrors.ValidationError("Room id is empty"))
	case errors.Is(err, domain.ErrSubchannelNotFound):
		response.AppError(c, apperrors.SubchannelNotFoundError())
	case errors.Is(err, domain.ErrChannelNotFound):
		response.AppError(c, apperrors.ChannelNotFoundError())
	case errors.Is(err, callsession.ErrDispatchFailed):
		response.AppError(c, apperrors.DispatchFailedError(err))
	case errors.Is(err, callsession.ErrTokenUnavailable):
		response.AppError(c, apperrors.TokenUnavailableError(err))
	case errors.Is(err, callsession.ErrSDKConnect):
		response.AppError(c, apperrors.SDKConnectError(err))
	case errors.Is(err, callsession.ErrSuperseded):
		response.AppError(c, apperrors.New(apperrors.ErrCodeValidation, "Call attempt superseded", http.StatusConflict))
	default:
		response.InternalError(c, "Failed to process call request")
	}
}

// DirectCallRequest represents a direct call initiation request
type DirectCallRequest struct {
	RecipientID   string `json:"recipient_id" binding:"required,uuid"`
	RecipientName string `json:"recipient_name"`
	CallType      string `json:"call_type" binding:"required,oneof=audio video"`
}

// InitDirectCall starts a 1:1 call
// POST /v1/calls/direct
func (h *Handler) InitDirectCall(c *gin.Context) {
	var req DirectCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	callerID, callerName, ok := identity(c)
	if !ok {
		return
	}

	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		response.ValidationError(c, "Invalid recipient ID")
		return
	}

	callType, err := domain.ParseCallType(req.CallType)
	if err != nil {
		response.ValidationError(c, "Invalid call type")
		return
	}

	output, err := h.manager.InitCall(c.Request.Context(), &callsession.InitCallInput{
		CallerID:      callerID,
		CallerName:    callerName,
		RecipientID:   recipientID,
		RecipientName: req.RecipientName,
		CallType:      callType,
	})
	if err != nil {
		respondCallError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, output)
}

// GroupCallRequest represents a group call initiation request
type GroupCallRequest struct {
	SubchannelID string `json:"subchannel_id" binding:"required,uuid"`
	CallType     string `json:"call_type" binding:"required,oneof=audio video"`
}

// InitGroupCall starts a group call in a subchannel
// POST /v1/calls/group
func (h *Handler) InitGroupCall(c *gin.Context) {
	var req GroupCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	callerID, callerName, ok := identity(c)
	if !ok {
		return
	}

	subchannelID, err := uuid.Parse(req.SubchannelID)
	if err != nil {
		response.ValidationError(c, "Invalid subchannel ID")
		return
	}

	callType, err := domain.ParseCallType(req.CallType)
	if err != nil {
		response.ValidationError(c, "Invalid call type")
		return
	}

	output, err := h.manager.InitGroupCall(c.Request.Context(), &callsession.InitGroupCallInput{
		CallerID:     callerID,
		CallerName:   callerName,
		SubchannelID: subchannelID,
		CallType:     callType,
	})
	if err != nil {
		respondCallError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, output)
}

// JoinCallRequest represents a call join request
type JoinCallRequest struct {
	RoomID   string `json:"room_id" binding:"required"`
	CallType string `json:"call_type" binding:"required,oneof=audio video"`
}

// JoinCall joins an existing call room
// POST /v1/calls/join
func (h *Handler) JoinCall(c *gin.Context) {
	var req JoinCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	userID, userName, ok := identity(c)
	if !ok {
		return
	}

	callType, err := domain.ParseCallType(req.CallType)
	if err != nil {
		response.ValidationError(c, "Invalid call type")
		return
	}

	err = h.manager.JoinCall(c.Request.Context(), &callsession.JoinCallInput{
		UserID:   userID,
		UserName: userName,
		RoomID:   req.RoomID,
		CallType: callType,
	})
	if err != nil {
		respondCallError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Joined call",
		"room_id": req.RoomID,
	})
}

// EndCall ends the user's current call session
// POST /v1/calls/end
func (h *Handler) EndCall(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	if err := h.manager.EndCurrentCall(c.Request.Context(), userID); err != nil {
		respondCallError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Call ended"})
}

// GetSession returns the user's current call session, if any
// GET /v1/calls/session
func (h *Handler) GetSession(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	session := h.manager.CurrentSession(userID)
	if session == nil {
		response.Success(c, http.StatusOK, gin.H{"active": false})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"active":  session.IsActive(),
		"session": session,
	})
}
