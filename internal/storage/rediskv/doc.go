// Package rediskv implements storage.Backend as a RESP2 client, talking to
// Redis or to boxstore-server.
//
// Each call borrows a connection from an internal/pool Pool, sends one
// command with a deadline derived from Config.Timeout and the context, and
// returns the connection. Connections that hit an I/O or protocol error are
// discarded rather than returned. Swap maps to GETSET, Scan to a SCAN cursor
// loop with a MATCH pattern.
package rediskv
