// Package httpserver provides the operational HTTP endpoint of
// boxstore-server.
//
// Routes:
//
//	GET /health   liveness, always 200
//	GET /ready    200 when the backend answers a ping, 503 otherwise
//	GET /metrics  Prometheus exposition
//	GET /version  build information
package httpserver
