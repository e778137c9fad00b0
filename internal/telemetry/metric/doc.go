// Package metric provides Prometheus metrics for the TAN server.
//
//   - prometheus.go: registry, TAN lifecycle counters, HTTP metrics, handler
//   - collector.go: scrape-time gauges backed by callbacks
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
