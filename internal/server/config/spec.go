package config

import "time"

// Backend types.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the root configuration shared by boxstore-server and
// boxstore-cli.
type Config struct {
	Backend BackendSection `koanf:"backend"`
	Pool    PoolSection    `koanf:"pool"`
	Lock    LockSection    `koanf:"lock"`
	PreKeys PreKeysSection `koanf:"prekeys"`
	Server  ServerSection  `koanf:"server"`
	Log     LogSection     `koanf:"log"`
}

// BackendSection selects and configures the key-value backend.
type BackendSection struct {
	Type   string       `koanf:"type"`
	Redis  RedisConfig  `koanf:"redis"`
	Badger BadgerConfig `koanf:"badger"`
}

// RedisConfig configures the RESP client.
type RedisConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`

	TLS           bool   `koanf:"tls"`
	TLSCAFile     string `koanf:"tls_ca_file"`
	TLSServerName string `koanf:"tls_server_name"`
}

// BadgerConfig configures the embedded backend.
type BadgerConfig struct {
	Dir        string `koanf:"dir"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
	GCInterval string `koanf:"gc_interval"`
}

// PoolSection configures the backend connection pool.
type PoolSection struct {
	MaxTotal           int           `koanf:"max_total"`
	MaxIdle            int           `koanf:"max_idle"`
	MinIdle            int           `koanf:"min_idle"`
	MaxWait            time.Duration `koanf:"max_wait"`
	TestOnBorrow       bool          `koanf:"test_on_borrow"`
	TestOnReturn       bool          `koanf:"test_on_return"`
	TestWhileIdle      bool          `koanf:"test_while_idle"`
	EvictionInterval   time.Duration `koanf:"eviction_interval"`
	MinEvictableIdle   time.Duration `koanf:"min_evictable_idle"`
	TestsPerEviction   int           `koanf:"tests_per_eviction"`
	BlockWhenExhausted bool          `koanf:"block_when_exhausted"`
}

// LockSection configures session checkout retries.
type LockSection struct {
	RetryInterval time.Duration `koanf:"retry_interval"`
	MaxAttempts   int           `koanf:"max_attempts"`
}

// PreKeysSection configures the legacy one-time key store.
type PreKeysSection struct {
	LastID int `koanf:"last_id"`
}

// ServerSection configures boxstore-server endpoints.
type ServerSection struct {
	Redis           RedisServerConfig `koanf:"redis"`
	HTTP            HTTPConfig        `koanf:"http"`
	ShutdownTimeout time.Duration     `koanf:"shutdown_timeout"`
}

// RedisServerConfig configures the RESP listener.
type RedisServerConfig struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	RateLimit    int           `koanf:"rate_limit"`
	TLSCertFile  string        `koanf:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// HTTPConfig configures the health and metrics endpoint. An empty Addr
// disables it.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
