// Package metric provides Prometheus metrics for boxstore.
//
// A Registry owns its own prometheus.Registry (no global state) with the
// checkout, checkin and server counters, plus Go runtime and process
// collectors. Pool statistics are exported through PoolCollector.
//
// Metrics are exposed at /metrics by the HTTP server.
package metric
