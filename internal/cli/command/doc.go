// Package command provides CLI command definitions for boxstore-cli.
//
//   - root.go: app, global flags, connection and output helpers
//   - session.go: session checkout, checkin, show and list
//   - identity.go: identity get and put
//   - prekey.go: one-time key list and put
//   - system.go: ping, purge and version
//
// Flags must precede positional arguments, e.g.
// "boxstore-cli session checkin --data v1 bot1 deviceA".
package command
