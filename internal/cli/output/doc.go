// Package output renders boxstore-cli results as a table, JSON or YAML.
//
// Byte payloads are shown as text when they are printable UTF-8 and as
// base64 otherwise. JSON always uses base64 for []byte.
package output
