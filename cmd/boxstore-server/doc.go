// Package main provides the entry point for boxstore-server.
//
// boxstore-server serves a Redis-compatible subset (PING, AUTH, QUIT, GET,
// SET, GETSET, DEL, EXISTS, SCAN) over an in-memory or Badger backend, so
// session stores can run against it in development and single-node
// deployments. It also exposes /health, /ready, /metrics and /version.
//
// Usage:
//
//	boxstore-server [flags]
//	boxstore-server -config /etc/boxstore/server.yaml
//
// Changing log.level in the config file takes effect without a restart.
package main
