package config

import (
	"time"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/pool"
	"github.com/yndnr/boxstore-go/pkg/swaplock"
)

// Default configuration values.
const (
	DefaultBackendType = BackendRedis
	DefaultRedisHost   = "localhost"
	DefaultRedisPort   = 6379
	DefaultTimeout     = 2 * time.Second

	DefaultBadgerDir        = "/var/lib/boxstore/data"
	DefaultBadgerGCInterval = "10m"

	DefaultServerRedisAddr = "127.0.0.1:6379"
	DefaultServerHTTPAddr  = "127.0.0.1:9121"
	DefaultRateLimit       = 10000
	DefaultShutdownTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	p := pool.DefaultConfig()

	return &Config{
		Backend: BackendSection{
			Type: DefaultBackendType,
			Redis: RedisConfig{
				Host:    DefaultRedisHost,
				Port:    DefaultRedisPort,
				Timeout: DefaultTimeout,
			},
			Badger: BadgerConfig{
				Dir:        DefaultBadgerDir,
				SyncWrites: true,
				GCInterval: DefaultBadgerGCInterval,
			},
		},
		Pool: PoolSection{
			MaxTotal:           p.MaxTotal,
			MaxIdle:            p.MaxIdle,
			MinIdle:            p.MinIdle,
			MaxWait:            p.MaxWait,
			TestOnBorrow:       p.TestOnBorrow,
			TestOnReturn:       p.TestOnReturn,
			TestWhileIdle:      p.TestWhileIdle,
			EvictionInterval:   p.EvictionInterval,
			MinEvictableIdle:   p.MinEvictableIdle,
			TestsPerEviction:   p.TestsPerEviction,
			BlockWhenExhausted: p.BlockWhenExhausted,
		},
		Lock: LockSection{
			RetryInterval: swaplock.DefaultRetryInterval,
			MaxAttempts:   swaplock.DefaultMaxAttempts,
		},
		PreKeys: PreKeysSection{
			LastID: domain.DefaultLastPreKeyID,
		},
		Server: ServerSection{
			Redis: RedisServerConfig{
				Addr:         DefaultServerRedisAddr,
				RateLimit:    DefaultRateLimit,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  5 * time.Minute,
			},
			HTTP: HTTPConfig{
				Addr: DefaultServerHTTPAddr,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// ServerDefault returns the default configuration for boxstore-server,
// which serves from the in-memory backend.
func ServerDefault() *Config {
	cfg := Default()
	cfg.Backend.Type = BackendMemory
	return cfg
}

// PoolConfig converts the section into a pool.Config.
func (p PoolSection) PoolConfig() pool.Config {
	return pool.Config{
		MaxTotal:           p.MaxTotal,
		MaxIdle:            p.MaxIdle,
		MinIdle:            p.MinIdle,
		MaxWait:            p.MaxWait,
		TestOnBorrow:       p.TestOnBorrow,
		TestOnReturn:       p.TestOnReturn,
		TestWhileIdle:      p.TestWhileIdle,
		EvictionInterval:   p.EvictionInterval,
		MinEvictableIdle:   p.MinEvictableIdle,
		TestsPerEviction:   p.TestsPerEviction,
		BlockWhenExhausted: p.BlockWhenExhausted,
	}
}
