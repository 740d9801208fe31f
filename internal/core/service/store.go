package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
	"github.com/yndnr/boxstore-go/pkg/swaplock"
)

// Metrics receives store events. *metric.Registry implements it.
type Metrics interface {
	ObserveCheckout(result string, attempts int, waited time.Duration)
	ObserveCheckin(op string)
	ObserveBackendError(op string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCheckout(string, int, time.Duration) {}
func (nopMetrics) ObserveCheckin(string)                      {}
func (nopMetrics) ObserveBackendError(string)                 {}

// Store is the session checkout store.
type Store struct {
	backend      storage.Backend
	locker       *swaplock.Locker
	maxAttempts  int
	lastPreKeyID int
	metrics      Metrics
	logger       logger.Logger
}

type options struct {
	retryInterval time.Duration
	maxAttempts   int
	lastPreKeyID  int
	metrics       Metrics
	logger        logger.Logger
}

// Option configures a Store.
type Option func(*options)

// WithLockRetryInterval sets the pause between checkout attempts while a
// record is held by someone else.
func WithLockRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithLockMaxAttempts sets the checkout attempt budget.
func WithLockMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithLastPreKeyID sets the highest one-time key index.
func WithLastPreKeyID(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.lastPreKeyID = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewStore creates a Store over backend. The Store does not own the
// backend; closing it is the caller's job.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	o := options{
		retryInterval: swaplock.DefaultRetryInterval,
		maxAttempts:   swaplock.DefaultMaxAttempts,
		lastPreKeyID:  domain.DefaultLastPreKeyID,
		metrics:       nopMetrics{},
		logger:        logger.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		backend: backend,
		locker: swaplock.New(backend,
			swaplock.WithRetryInterval(o.retryInterval),
			swaplock.WithMaxAttempts(o.maxAttempts),
		),
		maxAttempts:  o.maxAttempts,
		lastPreKeyID: o.lastPreKeyID,
		metrics:      o.metrics,
		logger:       o.logger.With("component", "boxstore"),
	}
}

// LastPreKeyID returns the highest one-time key index the store scans.
func (s *Store) LastPreKeyID() int {
	return s.lastPreKeyID
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return s.backendErr("ping", err)
	}
	return nil
}

func (s *Store) log(ctx context.Context) logger.Logger {
	l := s.logger
	if id := logger.RequestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}

func (s *Store) backendErr(op string, err error) error {
	s.metrics.ObserveBackendError(op)
	return domain.ErrBackendUnavailable.WithCause(fmt.Errorf("%s: %w", op, err))
}
