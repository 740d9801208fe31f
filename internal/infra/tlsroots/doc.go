// Package tlsroots builds TLS configurations.
//
//   - roots.go: trusted roots for clients dialing the backend
//   - watcher.go: server certificate with reload on file change
package tlsroots
