package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"unilink-backend/internal/domain"
	redisrepo "unilink-backend/internal/repository/redis"
	"unilink-backend/internal/service/notifier"
	"unilink-backend/pkg/constants"
	"unilink-backend/pkg/logger"
	"unilink-backend/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev, restrict in production
	},
}

// clientAction is a command sent by the client over the socket
type clientAction struct {
	Action string `json:"action"` // accept, decline, dismiss
}

// NotificationHandler streams incoming-call prompts to connected clients.
// Each connection gets its own presenter fed by the Redis notification
// stream, so two devices of the same user ring independently.
type NotificationHandler struct {
	source  notifier.NotificationSource
	joiner  notifier.CallJoiner
	stream  *redisrepo.NotificationStream
	metrics *metrics.Metrics

	mu          sync.Mutex
	connections int
}

// NewNotificationHandler creates a new WebSocket notification handler
func NewNotificationHandler(source notifier.NotificationSource, joiner notifier.CallJoiner, stream *redisrepo.NotificationStream, m *metrics.Metrics) *NotificationHandler {
	return &NotificationHandler{
		source:  source,
		joiner:  joiner,
		stream:  stream,
		metrics: m,
	}
}

// ServeWS handles WebSocket requests
// GET /v1/notifications/ws
func (h *NotificationHandler) ServeWS(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(401, gin.H{"error": "unauthorized"})
		return
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		c.JSON(500, gin.H{"error": "invalid user_id"})
		return
	}

	userName := c.GetString("display_name")
	if userName == "" {
		userName = c.GetString("username")
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.trackConnection(1)
	defer h.trackConnection(-1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	presenter := notifier.NewPresenter(userID, userName, h.source, h.joiner, h.metrics)

	pubsub := h.stream.Subscribe(ctx, userID)
	defer pubsub.Close()

	updates := make(chan *domain.CallNotification)
	go func() {
		defer close(updates)
		for msg := range pubsub.Channel() {
			n, err := redisrepo.Decode(msg.Payload)
			if err != nil {
				logger.Warn("Failed to decode notification payload", zap.Error(err))
				continue
			}
			select {
			case updates <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	go presenter.Run(ctx, updates)

	var writeMu sync.Mutex
	done := make(chan struct{})
	go h.writePump(ctx, conn, presenter, &writeMu, done)

	h.readPump(ctx, conn, presenter, &writeMu)
	cancel()
	<-done
}

func (h *NotificationHandler) trackConnection(delta int) {
	h.mu.Lock()
	h.connections += delta
	count := h.connections
	h.mu.Unlock()
	h.metrics.SetWebSocketConnections(count)
}

// writePump streams presenter events to the socket and keeps it alive with pings
func (h *NotificationHandler) writePump(ctx context.Context, conn *websocket.Conn, presenter *notifier.Presenter, writeMu *sync.Mutex, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(constants.WebSocketPingInterval * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-presenter.Events():
			data, err := json.Marshal(event)
			if err != nil {
				logger.Warn("Failed to marshal presenter event", zap.Error(err))
				continue
			}
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err = conn.WriteMessage(websocket.TextMessage, data)
			writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readPump reads client actions until the connection drops
func (h *NotificationHandler) readPump(ctx context.Context, conn *websocket.Conn, presenter *notifier.Presenter, writeMu *sync.Mutex) {
	conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var action clientAction
		if err := json.Unmarshal(message, &action); err != nil {
			logger.Warn("Invalid client action", zap.Error(err))
			continue
		}

		var actionErr error
		switch action.Action {
		case "accept":
			actionErr = presenter.Accept(ctx)
		case "decline":
			actionErr = presenter.Decline(ctx)
		case "dismiss":
			presenter.Dismiss()
		default:
			actionErr = errors.New("unknown action")
		}

		if actionErr != nil {
			h.writeError(conn, writeMu, action.Action, actionErr)
		}
	}
}

func (h *NotificationHandler) writeError(conn *websocket.Conn, writeMu *sync.Mutex, action string, err error) {
	payload, marshalErr := json.Marshal(gin.H{
		"type":    "error",
		"action":  action,
		"message": err.Error(),
	})
	if marshalErr != nil {
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Warn("Failed to write error to client", zap.Error(err))
	}
}
