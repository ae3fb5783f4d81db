// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Call orchestration constants
const (
	// IncomingCallTimeout is how long an incoming-call prompt rings before
	// it auto-resolves as a decline
	IncomingCallTimeout = 30 * time.Second

	// CountdownTick is the interval at which the ring countdown decrements
	CountdownTick = 1 * time.Second

	// NotificationPollInterval is the fallback poll interval for the unread
	// notification view. Call notifications are pushed over pub/sub; the poll
	// only covers missed events.
	NotificationPollInterval = 30 * time.Second

	// RTCTokenTTL is the validity window of a room access token
	RTCTokenTTL = 1 * time.Hour

	// RTCJoinTimeout bounds a single room join attempt
	RTCJoinTimeout = 15 * time.Second
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Push notification constants
const (
	// PushTokenExpiry is how long a registered device token set lives in Redis
	// without being refreshed
	PushTokenExpiry = 30 * 24 * time.Hour
)

// Pagination constants
const (
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 20

	// MaxPageSize is the maximum number of items per page
	MaxPageSize = 100
)

// Message constants
const (
	// MaxMessageLength is the maximum allowed message length
	MaxMessageLength = 10000
)
