package config

import "strings"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg

	if sanitized.Backend.Redis.Password != "" {
		sanitized.Backend.Redis.Password = maskSecret(sanitized.Backend.Redis.Password)
	}
	if sanitized.Server.Redis.Password != "" {
		sanitized.Server.Redis.Password = maskSecret(sanitized.Server.Redis.Password)
	}

	return &sanitized
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
