package memory

import (
	"context"
	"sync/atomic"

	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/pkg/cmap"
)

// Backend is an in-memory storage.Backend.
type Backend struct {
	items  *cmap.Map[[]byte]
	closed atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// Option configures the Backend.
type Option func(*options)

type options struct {
	shards int
}

// WithShards sets the number of map shards (a power of two).
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// New creates an empty in-memory backend.
func New(opts ...Option) *Backend {
	o := options{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}
	return &Backend{items: cmap.NewWithShards[[]byte](o.shards)}
}

// Get retrieves a value by key.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	v, ok := b.items.Get(key)
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return clone(v), nil
}

// Set stores a key-value pair.
func (b *Backend) Set(_ context.Context, key string, value []byte) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	b.items.Set(key, clone(value))
	return nil
}

// Delete removes a key.
func (b *Backend) Delete(_ context.Context, key string) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	b.items.Delete(key)
	return nil
}

// Exists reports whether key is present.
func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	if b.closed.Load() {
		return false, storage.ErrClosed
	}
	return b.items.Has(key), nil
}

// Swap stores value and returns the previous value atomically.
func (b *Backend) Swap(_ context.Context, key string, value []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	prev, existed := b.items.Swap(key, clone(value))
	if !existed {
		return nil, nil
	}
	return clone(prev), nil
}

// Scan visits keys with the given prefix in lexical order.
func (b *Backend) Scan(ctx context.Context, prefix string, fn func(key string) bool) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	for _, k := range b.items.KeysWithPrefix(prefix) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k) {
			break
		}
	}
	return nil
}

// Ping reports ErrClosed after Close.
func (b *Backend) Ping(context.Context) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	return nil
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	return b.items.Count()
}

// Close drops all data. Further calls fail with storage.ErrClosed.
func (b *Backend) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		b.items.Clear()
	}
	return nil
}

// clone copies v, keeping the nil/empty distinction for stored values:
// nil is stored as an empty slice.
func clone(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
