package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the call service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Call session metrics
	callsTotal       *prometheus.CounterVec
	callsActive      prometheus.Gauge
	callsFailedTotal *prometheus.CounterVec

	// Invitation dispatch metrics
	invitesDispatchedTotal *prometheus.CounterVec
	inviteFanoutSize       prometheus.Histogram

	// Incoming call presenter metrics
	presenterTimeoutsTotal prometheus.Counter

	// Push notification metrics
	pushNotificationsTotal  *prometheus.CounterVec
	pushNotificationsFailed *prometheus.CounterVec

	// WebSocket metrics
	websocketConnections prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_sessions_total",
				Help:        "Total number of call sessions by type and outcome",
				ConstLabels: labels,
			},
			[]string{"call_type", "outcome"},
		),
		callsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "call_sessions_active",
				Help:        "Number of currently active call sessions",
				ConstLabels: labels,
			},
		),
		callsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_sessions_failed_total",
				Help:        "Total number of call session failures by reason",
				ConstLabels: labels,
			},
			[]string{"call_type", "reason"},
		),
		invitesDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_invites_dispatched_total",
				Help:        "Total number of call invitations dispatched",
				ConstLabels: labels,
			},
			[]string{"kind", "status"},
		),
		inviteFanoutSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "call_invite_fanout_size",
				Help:        "Number of recipients per group invite fan-out",
				ConstLabels: labels,
				Buckets:     []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
		presenterTimeoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "incoming_call_timeouts_total",
				Help:        "Total number of incoming-call prompts auto-declined on timeout",
				ConstLabels: labels,
			},
		),
		pushNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_total",
				Help:        "Total number of push notifications sent",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		pushNotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_failed_total",
				Help:        "Total number of failed push notification sends",
				ConstLabels: labels,
			},
			[]string{"kind", "reason"},
		),
		websocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Current number of active WebSocket connections",
				ConstLabels: labels,
			},
		),
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.callsTotal,
		m.callsActive,
		m.callsFailedTotal,
		m.invitesDispatchedTotal,
		m.inviteFanoutSize,
		m.presenterTimeoutsTotal,
		m.pushNotificationsTotal,
		m.pushNotificationsFailed,
		m.websocketConnections,
	)

	return m
}

// GetRegistry returns the custom registry for the metrics endpoint
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight request gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight request gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// RecordCall records a call session outcome ("started", "ended")
func (m *Metrics) RecordCall(callType, outcome string) {
	m.callsTotal.WithLabelValues(callType, outcome).Inc()
}

// SetActiveCalls sets the active session gauge
func (m *Metrics) SetActiveCalls(count int) {
	m.callsActive.Set(float64(count))
}

// RecordCallFailure records a failed session attempt by reason
func (m *Metrics) RecordCallFailure(callType, reason string) {
	m.callsFailedTotal.WithLabelValues(callType, reason).Inc()
}

// RecordInviteDispatch records an invitation dispatch attempt
func (m *Metrics) RecordInviteDispatch(kind, status string) {
	m.invitesDispatchedTotal.WithLabelValues(kind, status).Inc()
}

// RecordInviteFanout records the recipient count of a group fan-out
func (m *Metrics) RecordInviteFanout(recipients int) {
	m.inviteFanoutSize.Observe(float64(recipients))
}

// RecordPresenterTimeout records an incoming-call prompt auto-declined on timeout
func (m *Metrics) RecordPresenterTimeout() {
	m.presenterTimeoutsTotal.Inc()
}

// RecordPushNotification records a push notification send
func (m *Metrics) RecordPushNotification(kind string) {
	m.pushNotificationsTotal.WithLabelValues(kind).Inc()
}

// RecordPushNotificationFailure records a failed push notification send
func (m *Metrics) RecordPushNotificationFailure(kind, reason string) {
	m.pushNotificationsFailed.WithLabelValues(kind, reason).Inc()
}

// SetWebSocketConnections sets the WebSocket connection gauge
func (m *Metrics) SetWebSocketConnections(count int) {
	m.websocketConnections.Set(float64(count))
}
