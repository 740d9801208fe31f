package kvserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/pkg/resp"
)

// Config holds the server configuration.
type Config struct {
	// Address is the listen address.
	Address string
	// TLSConfig enables TLS on the listener when non-nil.
	TLSConfig *tls.Config
	// Password, when set, must be presented with AUTH.
	Password string
	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one reply.
	WriteTimeout time.Duration
	// IdleTimeout closes connections idle between commands.
	IdleTimeout time.Duration
	// RateLimit is the maximum commands per second per client IP.
	// Zero disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:      "127.0.0.1:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    10000,
	}
}

// Metrics receives server events.
type Metrics interface {
	ObserveCommand(command string, ok bool)
	ObserveConnection(open bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCommand(string, bool) {}
func (nopMetrics) ObserveConnection(bool)      {}

// Server is the RESP server.
type Server struct {
	cfg     Config
	backend storage.Backend
	handler *commandHandler
	logger  *slog.Logger
	metrics Metrics

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup

	connsMu sync.Mutex
	conns   map[string]*Conn
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Conn is one client connection.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	authenticated atomic.Bool
	closed        atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		id:      ulid.Make().String(),
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
	}
}

// ID returns the connection's ULID.
func (c *Conn) ID() string { return c.id }

// Close closes the connection once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// New creates a server over backend.
func New(cfg Config, backend storage.Backend, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With("component", "kvserver"),
		metrics: nopMetrics{},
		conns:   make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = newCommandHandler(backend, cfg, s.logger)
	return s
}

// Start binds the listener and serves connections in the background.
func (s *Server) Start(ctx context.Context) error {
	var (
		ln  net.Listener
		err error
	)
	if s.cfg.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.cfg.Address, s.cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.cfg.Address)
	}
	if err != nil {
		return fmt.Errorf("kvserver: listen %s: %w", s.cfg.Address, err)
	}

	s.ln = ln
	s.running.Store(true)
	s.logger.Info("kvserver listening",
		"address", ln.Addr().String(),
		"tls", s.cfg.TLSConfig != nil,
		"auth", s.cfg.Password != "")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil {
			s.logger.Error("accept loop stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting, closes open connections and waits for their
// goroutines to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	s.connsMu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("kvserver stopped")
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		c := newConn(nc)
		s.track(c, true)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(c, false)
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) track(c *Conn, open bool) {
	s.connsMu.Lock()
	if open {
		s.conns[c.id] = c
	} else {
		delete(s.conns, c.id)
	}
	s.connsMu.Unlock()
	s.metrics.ObserveConnection(open)
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer c.Close()

	readTimeout := orDefault(s.cfg.ReadTimeout, 30*time.Second)
	writeTimeout := orDefault(s.cfg.WriteTimeout, 30*time.Second)
	idleTimeout := orDefault(s.cfg.IdleTimeout, 5*time.Minute)

	log := s.logger.With("conn_id", c.id, "remote", c.RemoteAddr().String())
	log.Debug("connection opened")
	defer log.Debug("connection closed")

	for {
		// Idle between commands, then a tighter deadline for the command body.
		if err := c.netConn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) && !c.closed.Load() {
				log.Debug("connection read error", "error", err)
			}
			return
		}
		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		args, err := resp.ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Debug("connection timed out")
				return
			}
			msg := "ERR protocol error: " + err.Error()
			if errors.Is(err, resp.ErrLimitExceeded) {
				log.Warn("protocol limit exceeded", "error", err)
				msg = "ERR protocol limit exceeded"
			}
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = resp.WriteError(c.bw, msg)
			_ = c.bw.Flush()
			return
		}

		if len(args) == 0 {
			continue
		}

		name := resp.CommandName(args[0])
		ok := s.handler.handle(ctx, c, name, args)
		s.metrics.ObserveCommand(commandLabel(name), ok)

		if c.closed.Load() {
			return
		}
		if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			return
		}
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
