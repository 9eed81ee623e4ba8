package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the workspace core.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Workspace metrics
	TabsOpen         prometheus.Gauge
	SessionsCreated  *prometheus.CounterVec
	SessionsClosed   *prometheus.CounterVec
	ProviderSwitches prometheus.Counter
	Reconciliations  *prometheus.CounterVec
	HistorySize      prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdeck_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termdeck_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		TabsOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termdeck_tabs_open",
				Help: "Number of tabs currently in the workspace",
			},
		),
		SessionsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdeck_sessions_created_total",
				Help: "Total number of sessions created",
			},
			[]string{"mode"},
		),
		SessionsClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdeck_sessions_closed_total",
				Help: "Total number of sessions closed",
			},
			[]string{"reason"},
		),
		ProviderSwitches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termdeck_provider_switches_total",
				Help: "Total number of live provider switches",
			},
		),
		Reconciliations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdeck_reconciliations_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"outcome"},
		),
		HistorySize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termdeck_history_entries",
				Help: "Number of entries in the history ledger",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termdeck_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termdeck_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSessionCreated records a session create by mode.
func (m *Metrics) RecordSessionCreated(agentMode bool) {
	mode := "plain"
	if agentMode {
		mode = "agent"
	}
	m.SessionsCreated.WithLabelValues(mode).Inc()
}

// RecordSessionClosed records a session close by reason ("user", "backend").
func (m *Metrics) RecordSessionClosed(reason string) {
	m.SessionsClosed.WithLabelValues(reason).Inc()
}

// RecordProviderSwitch records a live provider switch.
func (m *Metrics) RecordProviderSwitch() {
	m.ProviderSwitches.Inc()
}

// RecordReconciliation records a reconciliation run by outcome ("ok", "failed").
func (m *Metrics) RecordReconciliation(outcome string) {
	m.Reconciliations.WithLabelValues(outcome).Inc()
}

// SetTabsOpen sets the current tab count.
func (m *Metrics) SetTabsOpen(count int) {
	m.TabsOpen.Set(float64(count))
}

// SetHistorySize sets the current history ledger size.
func (m *Metrics) SetHistorySize(count int) {
	m.HistorySize.Set(float64(count))
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
