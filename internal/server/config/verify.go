package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// Verify validates the configuration and returns all problems found.
func Verify(cfg *Config) error {
	var errs []error
	errs = append(errs, verifyBackend(&cfg.Backend)...)
	if err := cfg.Pool.PoolConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Lock.RetryInterval <= 0 {
		errs = append(errs, errors.New("lock.retry_interval must be positive"))
	}
	if cfg.Lock.MaxAttempts < 1 {
		errs = append(errs, errors.New("lock.max_attempts must be at least 1"))
	}
	if cfg.PreKeys.LastID < 0 {
		errs = append(errs, errors.New("prekeys.last_id must not be negative"))
	}
	errs = append(errs, verifyLog(&cfg.Log)...)
	return errors.Join(errs...)
}

// VerifyServer additionally validates the server section.
func VerifyServer(cfg *Config) error {
	var errs []error
	if err := Verify(cfg); err != nil {
		errs = append(errs, err)
	}
	if cfg.Backend.Type == BackendRedis {
		errs = append(errs, errors.New("backend.type must be memory or badger for the server"))
	}
	errs = append(errs, verifyServer(&cfg.Server)...)
	return errors.Join(errs...)
}

func verifyBackend(b *BackendSection) []error {
	var errs []error
	switch b.Type {
	case BackendRedis:
		if b.Redis.Host == "" {
			errs = append(errs, errors.New("backend.redis.host is required"))
		}
		if b.Redis.Port <= 0 || b.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("backend.redis.port %d out of range", b.Redis.Port))
		}
		if b.Redis.Timeout <= 0 {
			errs = append(errs, errors.New("backend.redis.timeout must be positive"))
		}
		if b.Redis.TLSCAFile != "" {
			if _, err := os.Stat(b.Redis.TLSCAFile); err != nil {
				errs = append(errs, fmt.Errorf("backend.redis.tls_ca_file: %w", err))
			}
		}
	case BackendBadger:
		if b.Badger.Dir == "" && !b.Badger.InMemory {
			errs = append(errs, errors.New("backend.badger.dir is required"))
		}
		if b.Badger.GCInterval != "" {
			if _, err := time.ParseDuration(b.Badger.GCInterval); err != nil {
				errs = append(errs, fmt.Errorf("backend.badger.gc_interval: %w", err))
			}
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("backend.type %q is not one of redis, memory, badger", b.Type))
	}
	return errs
}

func verifyServer(s *ServerSection) []error {
	var errs []error
	if _, _, err := net.SplitHostPort(s.Redis.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.redis.addr: %w", err))
	}
	if s.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(s.HTTP.Addr); err != nil {
			errs = append(errs, fmt.Errorf("server.http.addr: %w", err))
		}
		if s.HTTP.Addr == s.Redis.Addr {
			errs = append(errs, errors.New("server.http.addr and server.redis.addr must differ"))
		}
	}
	if s.Redis.RateLimit < 0 {
		errs = append(errs, errors.New("server.redis.rate_limit must not be negative"))
	}
	if (s.Redis.TLSCertFile == "") != (s.Redis.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.redis.tls_cert_file and tls_key_file must be set together"))
	}
	for _, f := range []string{s.Redis.TLSCertFile, s.Redis.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Errorf("server.redis tls file: %w", err))
		}
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	return errs
}

func verifyLog(l *LogSection) []error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is invalid", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is invalid", l.Format))
	}
	return errs
}
