package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool errors.
var (
	ErrPoolExhausted = errors.New("pool: exhausted")
	ErrPoolClosed    = errors.New("pool: closed")
)

// createTimeout bounds object creation done by the evictor.
const createTimeout = 5 * time.Second

// Hooks tell the pool how to manage its objects. New is required.
type Hooks[T any] struct {
	// New creates an object.
	New func(ctx context.Context) (T, error)
	// Validate reports whether obj is still usable.
	Validate func(ctx context.Context, obj T) error
	// Close releases obj.
	Close func(obj T) error
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Active    int
	Idle      int
	Waiting   int64
	Created   uint64
	Destroyed uint64
	MaxTotal  int
}

type idleObj[T any] struct {
	obj   T
	since time.Time
}

// Pool is a bounded pool of T.
type Pool[T any] struct {
	cfg    Config
	hooks  Hooks[T]
	logger *slog.Logger

	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []idleObj[T] // oldest first
	active int
	closed bool

	waiting   atomic.Int64
	created   atomic.Uint64
	destroyed atomic.Uint64

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a pool and starts its evictor.
func New[T any](cfg Config, hooks Hooks[T], opts ...Option) (*Pool[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hooks.New == nil {
		return nil, fmt.Errorf("pool: New hook is required")
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[T]{
		cfg:    cfg,
		hooks:  hooks,
		logger: o.logger,
		sem:    semaphore.NewWeighted(int64(cfg.MaxTotal)),
		stopCh: make(chan struct{}),
	}

	if cfg.EvictionInterval > 0 {
		p.wg.Add(1)
		go p.evictLoop()
	}

	return p, nil
}

// Get borrows an object. The caller must hand it back with Put or Discard.
func (p *Pool[T]) Get(ctx context.Context) (T, error) {
	var zero T

	if err := p.acquire(ctx); err != nil {
		return zero, err
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.sem.Release(1)
			return zero, ErrPoolClosed
		}
		n := len(p.idle)
		if n == 0 {
			p.active++
			p.mu.Unlock()
			break
		}
		it := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.active++
		p.mu.Unlock()

		if p.cfg.TestOnBorrow && !p.valid(ctx, it.obj) {
			p.logger.Debug("pool: idle object failed validation on borrow")
			p.destroy(it.obj)
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			continue
		}
		return it.obj, nil
	}

	obj, err := p.hooks.New(ctx)
	if err != nil {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		p.sem.Release(1)
		return zero, fmt.Errorf("pool: create: %w", err)
	}
	p.created.Add(1)
	return obj, nil
}

// Put returns a borrowed object to the pool.
func (p *Pool[T]) Put(obj T) {
	healthy := !p.cfg.TestOnReturn || p.valid(context.Background(), obj)

	p.mu.Lock()
	p.active--
	keep := healthy && !p.closed && len(p.idle) < p.cfg.MaxIdle
	if keep {
		p.idle = append(p.idle, idleObj[T]{obj: obj, since: time.Now()})
	}
	p.mu.Unlock()

	if !keep {
		p.destroy(obj)
	}
	p.sem.Release(1)
}

// Discard closes a borrowed object instead of returning it, freeing its slot.
// Use it after an I/O error leaves the object in an unknown state.
func (p *Pool[T]) Discard(obj T) {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()

	p.destroy(obj)
	p.sem.Release(1)
}

// Stats returns current pool counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:    p.active,
		Idle:      len(p.idle),
		Waiting:   p.waiting.Load(),
		Created:   p.created.Load(),
		Destroyed: p.destroyed.Load(),
		MaxTotal:  p.cfg.MaxTotal,
	}
}

// Close stops the evictor and closes idle objects. Borrowed objects are
// closed as they come back. Blocked Get calls fail with ErrPoolClosed.
func (p *Pool[T]) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		idle := p.idle
		p.idle = nil
		p.mu.Unlock()

		close(p.stopCh)
		p.wg.Wait()

		for _, it := range idle {
			p.destroy(it.obj)
		}
	})
	return nil
}

func (p *Pool[T]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool[T]) acquire(ctx context.Context) error {
	if p.isClosed() {
		return ErrPoolClosed
	}
	if p.sem.TryAcquire(1) {
		return nil
	}
	if !p.cfg.BlockWhenExhausted {
		return ErrPoolExhausted
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if p.cfg.MaxWait > 0 {
		waitCtx, cancel = context.WithTimeout(waitCtx, p.cfg.MaxWait)
		defer cancel()
	}
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	p.waiting.Add(1)
	err := p.sem.Acquire(waitCtx, 1)
	p.waiting.Add(-1)
	if err == nil {
		return nil
	}

	switch {
	case p.isClosed():
		return ErrPoolClosed
	case ctx.Err() != nil:
		return fmt.Errorf("pool: wait: %w", ctx.Err())
	default:
		return fmt.Errorf("%w: no object within %s", ErrPoolExhausted, p.cfg.MaxWait)
	}
}

func (p *Pool[T]) valid(ctx context.Context, obj T) bool {
	if p.hooks.Validate == nil {
		return true
	}
	return p.hooks.Validate(ctx, obj) == nil
}

func (p *Pool[T]) destroy(obj T) {
	p.destroyed.Add(1)
	if p.hooks.Close == nil {
		return
	}
	if err := p.hooks.Close(obj); err != nil {
		p.logger.Debug("pool: close object", "error", err)
	}
}

func (p *Pool[T]) evictLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evict()
			p.ensureMinIdle()
		case <-p.stopCh:
			return
		}
	}
}

// evict examines the oldest idle objects.
func (p *Pool[T]) evict() {
	now := time.Now()

	p.mu.Lock()
	n := len(p.idle)
	if p.cfg.TestsPerEviction > 0 && p.cfg.TestsPerEviction < n {
		n = p.cfg.TestsPerEviction
	}
	candidates := make([]idleObj[T], n)
	copy(candidates, p.idle[:n])
	p.idle = p.idle[n:]
	p.mu.Unlock()

	keep := candidates[:0]
	evicted := 0
	for _, c := range candidates {
		if p.cfg.MinEvictableIdle > 0 && now.Sub(c.since) >= p.cfg.MinEvictableIdle {
			p.destroy(c.obj)
			evicted++
			continue
		}
		if p.cfg.TestWhileIdle {
			ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
			ok := p.valid(ctx, c.obj)
			cancel()
			if !ok {
				p.destroy(c.obj)
				evicted++
				continue
			}
		}
		keep = append(keep, c)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		for _, c := range keep {
			p.destroy(c.obj)
		}
		return
	}
	p.idle = append(keep, p.idle...)
	var overflow []idleObj[T]
	if extra := len(p.idle) - p.cfg.MaxIdle; extra > 0 {
		overflow = append(overflow, p.idle[:extra]...)
		p.idle = p.idle[extra:]
	}
	p.mu.Unlock()

	for _, c := range overflow {
		p.destroy(c.obj)
	}
	if evicted > 0 {
		p.logger.Debug("pool: evicted idle objects", "count", evicted)
	}
}

// ensureMinIdle creates objects until the idle set reaches MinIdle, without
// exceeding MaxTotal live objects. Each creation holds a borrow slot so a
// concurrent Get cannot create into the same slot.
func (p *Pool[T]) ensureMinIdle() {
	for {
		p.mu.Lock()
		if p.closed || len(p.idle) >= p.cfg.MinIdle || p.active+len(p.idle) >= p.cfg.MaxTotal {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		if !p.sem.TryAcquire(1) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
		obj, err := p.hooks.New(ctx)
		cancel()
		if err != nil {
			p.sem.Release(1)
			p.logger.Warn("pool: refill idle objects", "error", err)
			return
		}
		p.created.Add(1)

		p.mu.Lock()
		if p.closed || len(p.idle) >= p.cfg.MaxIdle || p.active+len(p.idle) >= p.cfg.MaxTotal {
			p.mu.Unlock()
			p.destroy(obj)
			p.sem.Release(1)
			return
		}
		p.idle = append(p.idle, idleObj[T]{obj: obj, since: time.Now()})
		p.mu.Unlock()
		p.sem.Release(1)
	}
}
