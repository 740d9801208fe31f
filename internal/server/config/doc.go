// Package config defines the boxstore configuration.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets for logs
//   - backend.go: opening the configured storage backend
//
// Configuration is loaded via internal/infra/confloader from files,
// environment variables and flags.
package config
