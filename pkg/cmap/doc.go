// Package cmap provides a sharded concurrent map keyed by strings.
//
// Keys are spread over a power-of-two number of shards using murmur3, each
// shard guarded by its own RWMutex. Besides plain Get/Set/Delete the map
// offers Swap, which sets a value and returns the one it replaced under a
// single shard lock.
//
// Usage:
//
//	m := cmap.New[[]byte]()
//	prev, existed := m.Swap("ses_bot1-deviceA", []byte{})
//
// Range and Keys lock one shard at a time, so they observe a per-shard
// consistent view only.
package cmap
