package connection

import (
	"errors"
	"log/slog"

	"github.com/yndnr/boxstore-go/internal/core/service"
	serverconfig "github.com/yndnr/boxstore-go/internal/server/config"
	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
)

// Connection is an opened backend with a store over it.
type Connection struct {
	Backend storage.Backend
	Store   *service.Store
	// Target describes the backend for messages, e.g. "redis localhost:6379".
	Target string

	owned bool
}

// Manager lazily opens one connection per CLI invocation.
type Manager struct {
	current *Connection
	backend storage.Backend
	log     logger.Logger
}

// NewManager creates a connection manager.
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{log: log}
}

// NewManagerWithBackend creates a manager that uses backend instead of
// opening one from configuration. The backend is not closed by Disconnect.
func NewManagerWithBackend(backend storage.Backend, log logger.Logger) *Manager {
	m := NewManager(log)
	m.backend = backend
	return m
}

// Connect opens the configured backend, or returns the current connection.
func (m *Manager) Connect(cfg *serverconfig.Config) (*Connection, error) {
	if m.current != nil {
		return m.current, nil
	}
	if cfg == nil {
		return nil, errors.New("connection: no configuration")
	}

	backend, owned, target := m.backend, false, "injected"
	if backend == nil {
		var err error
		backend, err = serverconfig.OpenBackend(cfg, logger.Slog(m.log))
		if err != nil {
			return nil, err
		}
		owned = true
		target = describe(cfg)
	}

	m.current = &Connection{
		Backend: backend,
		Store:   service.NewStore(backend, StoreOptions(cfg, m.log)...),
		Target:  target,
		owned:   owned,
	}
	return m.current, nil
}

// Disconnect closes the current connection if it owns its backend.
func (m *Manager) Disconnect() error {
	c := m.current
	m.current = nil
	if c == nil || !c.owned {
		return nil
	}
	return c.Backend.Close()
}

// Current returns the current connection.
func (m *Manager) Current() *Connection {
	return m.current
}

// IsConnected returns true if a connection is open.
func (m *Manager) IsConnected() bool {
	return m.current != nil
}

// StoreOptions maps the lock and prekeys sections onto store options.
func StoreOptions(cfg *serverconfig.Config, log logger.Logger) []service.Option {
	return []service.Option{
		service.WithLockRetryInterval(cfg.Lock.RetryInterval),
		service.WithLockMaxAttempts(cfg.Lock.MaxAttempts),
		service.WithLastPreKeyID(cfg.PreKeys.LastID),
		service.WithLogger(log),
	}
}

func describe(cfg *serverconfig.Config) string {
	switch cfg.Backend.Type {
	case serverconfig.BackendBadger:
		if cfg.Backend.Badger.InMemory {
			return "badger (in-memory)"
		}
		return "badger " + cfg.Backend.Badger.Dir
	case serverconfig.BackendMemory:
		return "memory"
	default:
		rc, err := cfg.RedisClientConfig()
		if err != nil {
			return "redis"
		}
		return "redis " + rc.Addr()
	}
}
