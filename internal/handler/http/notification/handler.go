package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"unilink-backend/internal/domain"
	"unilink-backend/internal/service/notification"
	"unilink-backend/pkg/apperrors"
	"unilink-backend/pkg/response"
)

// Handler handles call notification HTTP requests
type Handler struct {
	service *notification.Service
}

// NewHandler creates a new notification handler
func NewHandler(service *notification.Service) *Handler {
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

// List returns the user's call notifications with pagination
// GET /v1/notifications?limit=20&offset=0
func (h *Handler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 0 || offset < 0 {
		response.ValidationError(c, "limit and offset must be non-negative")
		return
	}

	result, err := h.service.GetNotifications(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(c, "Failed to get notifications")
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListUnread returns the user's unread call notifications
// GET /v1/notifications/unread
func (h *Handler) ListUnread(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	notifications, err := h.service.GetUnread(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "Failed to get unread notifications")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkAsRead marks a single notification as read
// POST /v1/notifications/:id/read
func (h *Handler) MarkAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid notification ID")
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), notificationID, userID); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			response.AppError(c, apperrors.NotificationNotFoundError())
			return
		}
		response.InternalError(c, "Failed to mark notification as read")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllAsRead marks all of the user's notifications as read
// POST /v1/notifications/read-all
func (h *Handler) MarkAllAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.service.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		response.InternalError(c, "Failed to mark notifications as read")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "All notifications marked as read"})
}

// Delete removes a notification
// DELETE /v1/notifications/:id
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid notification ID")
		return
	}

	if err := h.service.Delete(c.Request.Context(), notificationID, userID); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			response.AppError(c, apperrors.NotificationNotFoundError())
			return
		}
		response.InternalError(c, "Failed to delete notification")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Notification deleted"})
}
