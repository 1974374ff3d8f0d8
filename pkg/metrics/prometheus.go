package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the signaling relay
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// WebSocket Metrics
	websocketConnections prometheus.Gauge
	websocketErrorsTotal *prometheus.CounterVec

	// Signaling Metrics
	signalEventsTotal  *prometheus.CounterVec
	loggedInUsers      prometheus.Gauge
	loginFailuresTotal prometheus.Counter

	// Call Metrics
	callsActive prometheus.Gauge
	callsTotal  *prometheus.CounterVec
}

// NewMetrics creates all relay metrics on a dedicated registry
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),

		websocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of open WebSocket connections",
				ConstLabels: labels,
			},
		),
		websocketErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_errors_total",
				Help:        "Total number of WebSocket errors",
				ConstLabels: labels,
			},
			[]string{"error"},
		),

		signalEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "signal_events_total",
				Help:        "Total number of signaling events processed",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		loggedInUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "logged_in_users",
				Help:        "Number of identities currently logged in",
				ConstLabels: labels,
			},
		),
		loginFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "login_failures_total",
				Help:        "Total number of rejected logins (identity already taken)",
				ConstLabels: labels,
			},
		),

		callsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "calls_active",
				Help:        "Number of calls currently ringing or active",
				ConstLabels: labels,
			},
		),
		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total number of call attempts by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
	}
}

// GetRegistry returns the registry backing these metrics
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the number of in-flight HTTP requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the number of in-flight HTTP requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// ConnectionOpened records a new WebSocket connection
func (m *Metrics) ConnectionOpened() {
	m.websocketConnections.Inc()
}

// ConnectionClosed records a closed WebSocket connection
func (m *Metrics) ConnectionClosed() {
	m.websocketConnections.Dec()
}

// RecordWebSocketError records a WebSocket error
func (m *Metrics) RecordWebSocketError(err string) {
	m.websocketErrorsTotal.WithLabelValues(err).Inc()
}

// RecordSignalEvent records one processed signaling event
func (m *Metrics) RecordSignalEvent(eventType string) {
	m.signalEventsTotal.WithLabelValues(eventType).Inc()
}

// SetLoggedInUsers sets the logged-in identities gauge
func (m *Metrics) SetLoggedInUsers(n int) {
	m.loggedInUsers.Set(float64(n))
}

// RecordLoginFailure records a rejected login
func (m *Metrics) RecordLoginFailure() {
	m.loginFailuresTotal.Inc()
}

// CallStarted records a new ringing call
func (m *Metrics) CallStarted() {
	m.callsActive.Inc()
	m.callsTotal.WithLabelValues("initiated").Inc()
}

// CallAnswered records a ringing call moving to active
func (m *Metrics) CallAnswered() {
	m.callsTotal.WithLabelValues("answered").Inc()
}

// CallFinished records a call leaving the ringing/active set
func (m *Metrics) CallFinished(outcome string) {
	m.callsActive.Dec()
	m.callsTotal.WithLabelValues(outcome).Inc()
}

// RecordCallFailure records a call attempt that never created a record
func (m *Metrics) RecordCallFailure(reason string) {
	m.callsTotal.WithLabelValues("failed_" + reason).Inc()
}
