package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// maxConflictRetries bounds Swap retries on optimistic transaction conflicts.
const maxConflictRetries = 64

// BadgerBackend implements Backend on Badger v3.
//
// Conflict detection is enabled so that Swap, a read followed by a write in
// one transaction, aborts and retries when another writer commits to the
// same key in between.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger
	closed atomic.Bool

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsGCRuns       prometheus.Counter
	metricsConflicts    prometheus.Counter

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBadgerBackend opens a Badger database and starts its GC loop.
func NewBadgerBackend(cfg BadgerConfig, logger *slog.Logger) (*BadgerBackend, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(&badgerLogger{logger: logger}).
		WithDetectConflicts(true).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if cfg.CacheSize > 0 {
		opts = opts.WithBlockCacheSize(cfg.CacheSize)
	}
	if cfg.ValueLogFileSize > 0 && !cfg.InMemory {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	b := &BadgerBackend{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if !cfg.InMemory {
		b.wg.Add(1)
		go b.gcLoop()
	}

	logger.Info("badger backend started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"sync_writes", cfg.SyncWrites)

	return b, nil
}

// Get retrieves a value by key.
func (b *BadgerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		v, err := readItem(txn, key)
		value = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a key-value pair.
func (b *BadgerBackend) Set(ctx context.Context, key string, value []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Delete removes a key.
func (b *BadgerBackend) Delete(ctx context.Context, key string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists reports whether key is present.
func (b *BadgerBackend) Exists(ctx context.Context, key string) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	return found, err
}

// Swap stores value and returns the previous value atomically.
func (b *BadgerBackend) Swap(ctx context.Context, key string, value []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if value == nil {
		value = []byte{}
	}

	for i := 0; i < maxConflictRetries; i++ {
		var prev []byte
		err := b.db.Update(func(txn *badger.Txn) error {
			v, err := readItem(txn, key)
			switch {
			case err == nil:
				prev = v
			case errors.Is(err, ErrKeyNotFound):
				prev = nil
			default:
				return err
			}
			return txn.Set([]byte(key), value)
		})
		if err == nil {
			return prev, nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return nil, err
		}
		if b.metricsConflicts != nil {
			b.metricsConflicts.Inc()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("badger: swap %q: %w", key, badger.ErrConflict)
}

// Scan iterates over keys with a given prefix.
func (b *BadgerBackend) Scan(ctx context.Context, prefix string, fn func(key string) bool) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !fn(string(it.Item().KeyCopy(nil))) {
				break
			}
		}
		return nil
	})
}

// Ping reports ErrClosed after Close.
func (b *BadgerBackend) Ping(ctx context.Context) error {
	if b.closed.Load() || b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// GC runs value log garbage collection until nothing more can be rewritten.
// Returns the number of rewrite cycles performed.
func (b *BadgerBackend) GC(ctx context.Context) (int, error) {
	if b.cfg.InMemory {
		return 0, nil
	}

	threshold := b.cfg.GCThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}

	startTime := time.Now()
	cycles := 0
	for ctx.Err() == nil {
		err := b.db.RunValueLogGC(threshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return cycles, fmt.Errorf("gc: %w", err)
		}
		cycles++
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcRuns.Add(1)
	if b.metricsGCRuns != nil {
		b.metricsGCRuns.Inc()
	}

	b.logger.Debug("gc completed", "cycles", cycles, "elapsed", time.Since(startTime))
	return cycles, nil
}

// Size returns the LSM and value log sizes in bytes.
func (b *BadgerBackend) Size() (lsm, vlog int64) {
	return b.db.Size()
}

// Close stops background work and closes the database.
func (b *BadgerBackend) Close() error {
	var err error
	b.stopOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)
		b.wg.Wait()
		if cerr := b.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
		}
		b.logger.Info("badger backend closed")
	})
	return err
}

// RegisterMetrics registers Badger metrics with reg and starts the size
// updater. Returns b for chaining.
func (b *BadgerBackend) RegisterMetrics(reg prometheus.Registerer) *BadgerBackend {
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "boxstore",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "boxstore",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	b.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boxstore",
		Subsystem: "badger",
		Name:      "gc_runs_total",
		Help:      "Completed value log GC runs",
	})
	b.metricsConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boxstore",
		Subsystem: "badger",
		Name:      "swap_conflicts_total",
		Help:      "Swap transactions retried after a write conflict",
	})

	reg.MustRegister(b.metricsLSMSize, b.metricsValueLogSize, b.metricsGCRuns, b.metricsConflicts)

	b.wg.Add(1)
	go b.metricsUpdateLoop()
	return b
}

func (b *BadgerBackend) metricsUpdateLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lsm, vlog := b.db.Size()
			b.metricsLSMSize.Set(float64(lsm))
			b.metricsValueLogSize.Set(float64(vlog))
		case <-b.stopCh:
			return
		}
	}
}

func (b *BadgerBackend) gcLoop() {
	defer b.wg.Done()

	interval, err := time.ParseDuration(b.cfg.GCInterval)
	if err != nil || interval <= 0 {
		b.logger.Warn("invalid gc_interval, using default 10m", "value", b.cfg.GCInterval)
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-b.stopCh:
			return
		}
	}
}

// readItem returns a copy of key's value. Empty values come back as a
// non-nil empty slice.
func readItem(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
