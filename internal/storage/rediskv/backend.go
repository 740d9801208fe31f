package rediskv

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/boxstore-go/internal/pool"
	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/pkg/resp"
)

// scanCount is the COUNT hint sent with SCAN.
const scanCount = 256

// Config configures the client.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int

	// Timeout bounds dialing and every command round trip.
	Timeout time.Duration

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	Pool pool.Config
}

// DefaultConfig returns a config for localhost:6379 with a 2s timeout and
// the default pool settings.
func DefaultConfig() Config {
	return Config{
		Host:    "localhost",
		Port:    6379,
		Timeout: 2 * time.Second,
		Pool:    pool.DefaultConfig(),
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Backend is a pooled RESP client.
type Backend struct {
	cfg    Config
	pool   *pool.Pool[*conn]
	logger *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// New creates a client. No connection is opened until the first call.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("rediskv: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("rediskv: invalid port %d", cfg.Port)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rediskv", "addr", cfg.Addr())

	p, err := pool.New(cfg.Pool, pool.Hooks[*conn]{
		New: func(ctx context.Context) (*conn, error) {
			return dial(ctx, cfg)
		},
		Validate: func(ctx context.Context, c *conn) error {
			return c.ping(ctx)
		},
		Close: func(c *conn) error {
			return c.close()
		},
	}, pool.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("rediskv: %w", err)
	}

	return &Backend{cfg: cfg, pool: p, logger: logger}, nil
}

// PoolStats returns connection pool statistics.
func (b *Backend) PoolStats() pool.Stats {
	return b.pool.Stats()
}

// do runs one command on a pooled connection.
func (b *Backend) do(ctx context.Context, args ...[]byte) (resp.Reply, error) {
	c, err := b.pool.Get(ctx)
	if err != nil {
		return resp.Reply{}, err
	}

	reply, err := c.do(ctx, args...)
	if err != nil && !isServerError(err) {
		b.pool.Discard(c)
		return resp.Reply{}, fmt.Errorf("rediskv: %s: %w", strings.ToUpper(string(args[0])), err)
	}
	b.pool.Put(c)
	if err != nil {
		return resp.Reply{}, fmt.Errorf("rediskv: %s: %w", strings.ToUpper(string(args[0])), err)
	}
	return reply, nil
}

// Get retrieves a value by key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := b.do(ctx, []byte("GET"), []byte(key))
	if err != nil {
		return nil, err
	}
	v, err := bulk(reply)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, storage.ErrKeyNotFound
	}
	return v, nil
}

// Set stores a key-value pair.
func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	reply, err := b.do(ctx, []byte("SET"), []byte(key), value)
	if err != nil {
		return err
	}
	if reply.Kind != resp.KindSimple {
		return fmt.Errorf("%w: SET replied %q", resp.ErrProtocol, reply.Kind)
	}
	return nil
}

// Delete removes a key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.do(ctx, []byte("DEL"), []byte(key))
	return err
}

// Exists reports whether key is present.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	reply, err := b.do(ctx, []byte("EXISTS"), []byte(key))
	if err != nil {
		return false, err
	}
	if reply.Kind != resp.KindInteger {
		return false, fmt.Errorf("%w: EXISTS replied %q", resp.ErrProtocol, reply.Kind)
	}
	return reply.Int > 0, nil
}

// Swap stores value and returns the previous value using GETSET.
func (b *Backend) Swap(ctx context.Context, key string, value []byte) ([]byte, error) {
	reply, err := b.do(ctx, []byte("GETSET"), []byte(key), value)
	if err != nil {
		return nil, err
	}
	return bulk(reply)
}

// Scan iterates keys matching prefix with SCAN.
func (b *Backend) Scan(ctx context.Context, prefix string, fn func(key string) bool) error {
	pattern := []byte(escapeGlob(prefix) + "*")
	count := []byte(strconv.Itoa(scanCount))
	cursor := "0"

	for {
		reply, err := b.do(ctx, []byte("SCAN"), []byte(cursor), []byte("MATCH"), pattern, []byte("COUNT"), count)
		if err != nil {
			return err
		}
		if reply.Kind != resp.KindArray || len(reply.Elems) != 2 || reply.Elems[1].Kind != resp.KindArray {
			return fmt.Errorf("%w: malformed SCAN reply", resp.ErrProtocol)
		}

		next, err := bulk(reply.Elems[0])
		if err != nil {
			return err
		}
		for _, e := range reply.Elems[1].Elems {
			k, err := bulk(e)
			if err != nil {
				return err
			}
			if !fn(string(k)) {
				return nil
			}
		}

		cursor = string(next)
		if cursor == "0" {
			return nil
		}
	}
}

// Ping checks connectivity with a PING on a pooled connection.
func (b *Backend) Ping(ctx context.Context) error {
	c, err := b.pool.Get(ctx)
	if err != nil {
		return err
	}
	if err := c.ping(ctx); err != nil {
		b.pool.Discard(c)
		return fmt.Errorf("rediskv: PING: %w", err)
	}
	b.pool.Put(c)
	return nil
}

// Close closes the pool and its idle connections.
func (b *Backend) Close() error {
	return b.pool.Close()
}

// bulk extracts a bulk payload. A null bulk yields nil.
func bulk(r resp.Reply) ([]byte, error) {
	if r.Kind != resp.KindBulk {
		return nil, fmt.Errorf("%w: expected bulk reply, got %q", resp.ErrProtocol, r.Kind)
	}
	if r.Null {
		return nil, nil
	}
	if r.Bulk == nil {
		return []byte{}, nil
	}
	return r.Bulk, nil
}

// escapeGlob escapes glob metacharacters so prefix matches literally.
func escapeGlob(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
