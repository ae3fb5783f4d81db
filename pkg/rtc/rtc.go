// Package rtc wraps the real-time media server's client surface: join a room
// with a bearer token, hold a session handle, and observe disconnects.
package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"unilink-backend/pkg/logger"
)

// JoinOptions selects which local media the session publishes
type JoinOptions struct {
	Audio bool
	Video bool
}

// Session is a live room connection. Disconnect releases the room and the
// local media devices; Disconnected is closed exactly once when the
// connection drops, whether locally or from the server side.
type Session interface {
	Disconnect()
	Disconnected() <-chan struct{}
}

// Client establishes room sessions
type Client interface {
	Join(ctx context.Context, token string, opts JoinOptions) (Session, error)
}

// joinFrame is the first message sent on the signaling socket
type joinFrame struct {
	Type  string `json:"type"`
	Audio bool   `json:"audio"`
	Video bool   `json:"video"`
}

// SignalClient is the WebSocket-based Client implementation talking to the
// media server's signaling endpoint.
type SignalClient struct {
	serverURL string
	dialer    *websocket.Dialer
}

// NewSignalClient creates a client for the given media server URL
// (e.g. ws://rtc.internal:7880/signal)
func NewSignalClient(serverURL string) *SignalClient {
	return &SignalClient{
		serverURL: serverURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Join dials the signaling endpoint, authenticates with the room token and
// announces the requested publish options. The returned session owns the
// connection.
func (c *SignalClient) Join(ctx context.Context, token string, opts JoinOptions) (Session, error) {
	if c.serverURL == "" {
		return nil, fmt.Errorf("rtc: server url not configured")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := c.dialer.DialContext(ctx, c.serverURL, header)
	if err != nil {
		return nil, fmt.Errorf("rtc: failed to connect to media server: %w", err)
	}

	frame, err := json.Marshal(joinFrame{Type: "join", Audio: opts.Audio, Video: opts.Video})
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, frame)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rtc: failed to send join frame: %w", err)
	}

	s := &signalSession{
		conn: conn,
		done: make(chan struct{}),
	}
	go s.readLoop()

	return s, nil
}

// signalSession holds one live signaling connection
type signalSession struct {
	conn     *websocket.Conn
	done     chan struct{}
	doneOnce sync.Once
}

func (s *signalSession) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("media server connection closed", zap.Error(err))
			}
			s.markDisconnected()
			return
		}
	}
}

func (s *signalSession) markDisconnected() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// Disconnect closes the room connection and releases local resources
func (s *signalSession) Disconnect() {
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.conn.Close()
	s.markDisconnected()
}

// Disconnected reports connection loss; the channel is closed exactly once
func (s *signalSession) Disconnected() <-chan struct{} {
	return s.done
}
