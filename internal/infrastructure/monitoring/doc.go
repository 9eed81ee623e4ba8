// Package monitoring collects Prometheus metrics for the workspace
// backend: HTTP request latency and throughput, open tab and history
// counts, session create/close rates, reconciliation outcomes, and
// WebSocket connection gauges. Metrics are exposed on /metrics via the
// standard promhttp handler.
package monitoring
