package pool

import (
	"fmt"
	"time"
)

// DefaultMaxWait is the borrow wait used by DefaultConfig.
const DefaultMaxWait = 5 * time.Second

// Config controls pool sizing and health checks.
type Config struct {
	// MaxTotal is the maximum number of live objects, borrowed plus idle.
	MaxTotal int
	// MaxIdle caps the idle set; extra returned objects are closed.
	MaxIdle int
	// MinIdle is the idle set size the evictor maintains.
	MinIdle int
	// MaxWait bounds how long Get blocks when exhausted. It must be
	// positive when BlockWhenExhausted is set.
	MaxWait time.Duration

	TestOnBorrow  bool
	TestOnReturn  bool
	TestWhileIdle bool

	// EvictionInterval is the evictor period. Zero disables the evictor.
	EvictionInterval time.Duration
	// MinEvictableIdle is how long an object may sit idle before eviction.
	MinEvictableIdle time.Duration
	// TestsPerEviction is the number of idle objects examined per run.
	TestsPerEviction int

	// BlockWhenExhausted makes Get wait for a free slot instead of failing
	// with ErrPoolExhausted.
	BlockWhenExhausted bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTotal:           1100,
		MaxIdle:            16,
		MinIdle:            16,
		MaxWait:            DefaultMaxWait,
		TestOnBorrow:       true,
		TestOnReturn:       true,
		TestWhileIdle:      true,
		EvictionInterval:   30 * time.Second,
		MinEvictableIdle:   60 * time.Second,
		TestsPerEviction:   3,
		BlockWhenExhausted: true,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.MaxTotal <= 0 {
		return fmt.Errorf("pool: max_total must be positive, got %d", c.MaxTotal)
	}
	if c.MaxIdle < 0 || c.MinIdle < 0 {
		return fmt.Errorf("pool: idle limits must not be negative")
	}
	if c.MinIdle > c.MaxIdle {
		return fmt.Errorf("pool: min_idle (%d) exceeds max_idle (%d)", c.MinIdle, c.MaxIdle)
	}
	if c.MaxIdle > c.MaxTotal {
		return fmt.Errorf("pool: max_idle (%d) exceeds max_total (%d)", c.MaxIdle, c.MaxTotal)
	}
	if c.MaxWait < 0 || c.EvictionInterval < 0 || c.MinEvictableIdle < 0 {
		return fmt.Errorf("pool: durations must not be negative")
	}
	if c.BlockWhenExhausted && c.MaxWait == 0 {
		return fmt.Errorf("pool: max_wait must be positive when block_when_exhausted is set")
	}
	return nil
}
