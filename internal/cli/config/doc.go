// Package config loads boxstore-cli settings.
//
// The CLI shares the backend, pool, lock and prekeys sections with the
// server configuration. Sources in increasing priority: defaults,
// ~/.boxstore/cli.yaml (or --config), BOXSTORE_* environment variables,
// command-line flags.
package config
