// Package observability provides OpenTelemetry metrics for tenantstore.
//
// MetricsExtension implements lifecycle hooks to record system-wide
// counters for inserted, updated and removed documents and for failed
// operations. RegisterPoolMetrics exports connection pool gauges read from
// pool.Stats on every collection.
//
// For per-operation tracing and latency, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
