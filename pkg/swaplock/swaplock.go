package swaplock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Defaults match a ~2s bounded wait.
const (
	DefaultRetryInterval = 10 * time.Millisecond
	DefaultMaxAttempts   = 200
)

// ErrTimeout is returned when the attempt budget is exhausted. The key has
// been deleted by the time the caller sees it.
var ErrTimeout = errors.New("swaplock: attempt budget exhausted")

// Swapper is the minimal store contract the lock needs.
//
// Swap writes value under key and returns the previous value. A nil prev
// means the key was absent; a non-nil empty slice is a stored empty value.
type Swapper interface {
	Swap(ctx context.Context, key string, value []byte) (prev []byte, err error)
	Delete(ctx context.Context, key string) error
}

// Result describes a successful acquisition.
type Result struct {
	// Value is the stored value, nil when the key did not exist.
	Value []byte
	// Attempts is the number of swaps it took, at least 1.
	Attempts int
	// Waited is the time spent between the first and last swap.
	Waited time.Duration
}

// Fresh reports whether the key was absent when acquired.
func (r Result) Fresh() bool { return r.Value == nil }

// Observer receives per-acquisition outcomes. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveAcquire(attempts int, waited time.Duration, err error)
}

// Locker acquires keys of a Swapper. It is safe for concurrent use and holds
// no per-key state.
type Locker struct {
	store       Swapper
	sentinel    []byte
	interval    time.Duration
	maxAttempts int
	observer    Observer
}

// Option configures a Locker.
type Option func(*Locker)

// WithSentinel sets the marker value written while a key is held.
func WithSentinel(sentinel []byte) Option {
	return func(l *Locker) {
		if sentinel != nil {
			l.sentinel = sentinel
		}
	}
}

// WithRetryInterval sets the pause between swaps while the key is held.
func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithMaxAttempts sets the total number of swaps before giving up.
func WithMaxAttempts(n int) Option {
	return func(l *Locker) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(l *Locker) { l.observer = o }
}

// New creates a Locker over store.
func New(store Swapper, opts ...Option) *Locker {
	l := &Locker{
		store:       store,
		sentinel:    []byte{},
		interval:    DefaultRetryInterval,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Sentinel returns the marker value.
func (l *Locker) Sentinel() []byte { return l.sentinel }

// IsSentinel reports whether v is the marker. A nil v never is.
func (l *Locker) IsSentinel(v []byte) bool {
	return v != nil && bytes.Equal(v, l.sentinel)
}

// Acquire takes the lock on key and returns the value it guarded.
//
// Context cancellation ends the wait between attempts and returns the
// context error. The key is left as is in that case: a swap already issued
// cannot be taken back, and deleting would discard another holder's value.
func (l *Locker) Acquire(ctx context.Context, key string) (Result, error) {
	limiter := rate.NewLimiter(rate.Every(l.interval), 1)
	start := time.Now()

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			// Wait also fails early when the next slot lies past the deadline.
			if ctx.Err() == nil {
				err = context.DeadlineExceeded
			}
			l.observe(attempt-1, time.Since(start), err)
			return Result{}, fmt.Errorf("swaplock: wait for %q: %w", key, err)
		}

		prev, err := l.store.Swap(ctx, key, l.sentinel)
		if err != nil {
			l.observe(attempt, time.Since(start), err)
			return Result{}, fmt.Errorf("swaplock: swap %q: %w", key, err)
		}

		if !l.IsSentinel(prev) {
			res := Result{Value: prev, Attempts: attempt, Waited: time.Since(start)}
			l.observe(attempt, res.Waited, nil)
			return res, nil
		}
	}

	if err := l.store.Delete(ctx, key); err != nil {
		l.observe(l.maxAttempts, time.Since(start), err)
		return Result{}, fmt.Errorf("swaplock: delete abandoned %q: %w", key, err)
	}
	l.observe(l.maxAttempts, time.Since(start), ErrTimeout)
	return Result{}, ErrTimeout
}

func (l *Locker) observe(attempts int, waited time.Duration, err error) {
	if l.observer != nil {
		l.observer.ObserveAcquire(attempts, waited, err)
	}
}
