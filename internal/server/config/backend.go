package config

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/yndnr/boxstore-go/internal/infra/tlsroots"
	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/internal/storage/memory"
	"github.com/yndnr/boxstore-go/internal/storage/rediskv"
)

// RedisClientConfig builds the rediskv client config from the backend and
// pool sections.
func (c *Config) RedisClientConfig() (rediskv.Config, error) {
	r := c.Backend.Redis
	cfg := rediskv.Config{
		Host:     r.Host,
		Port:     r.Port,
		Username: r.Username,
		Password: r.Password,
		DB:       r.DB,
		Timeout:  r.Timeout,
		Pool:     c.Pool.PoolConfig(),
	}

	if r.TLS || r.TLSCAFile != "" {
		serverName := r.TLSServerName
		if serverName == "" {
			serverName = r.Host
		}
		var (
			tlsCfg *tls.Config
			err    error
		)
		if r.TLSCAFile != "" {
			tlsCfg, err = tlsroots.ClientConfigFromFile(r.TLSCAFile, serverName)
			if err != nil {
				return rediskv.Config{}, fmt.Errorf("backend.redis.tls_ca_file: %w", err)
			}
		} else {
			tlsCfg = tlsroots.NewPool().ClientConfig(serverName)
		}
		cfg.TLS = tlsCfg
	}

	return cfg, nil
}

// BadgerStorageConfig builds the badger config from the backend section.
func (c *Config) BadgerStorageConfig() storage.BadgerConfig {
	b := c.Backend.Badger
	cfg := storage.DefaultBadgerConfig(b.Dir)
	cfg.InMemory = b.InMemory
	cfg.SyncWrites = b.SyncWrites
	if b.GCInterval != "" {
		cfg.GCInterval = b.GCInterval
	}
	return cfg
}

// OpenBackend opens the configured storage backend.
func OpenBackend(cfg *Config, logger *slog.Logger) (storage.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend.Type {
	case BackendMemory:
		return memory.New(), nil
	case BackendBadger:
		return storage.NewBadgerBackend(cfg.BadgerStorageConfig(), logger)
	case BackendRedis, "":
		rc, err := cfg.RedisClientConfig()
		if err != nil {
			return nil, err
		}
		return rediskv.New(rc, logger)
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}
