// Package confloader loads configuration with koanf.
//
// Sources, later overriding earlier:
//
//  1. Defaults (the target struct's prefilled values)
//  2. YAML file
//  3. Environment variables (BOXSTORE_ prefix)
//  4. Maps, used for command-line flags and tests
//
// Watcher reports changes to a configuration file via fsnotify.
package confloader
