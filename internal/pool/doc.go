// Package pool provides a bounded, health-checked object pool.
//
// A Pool hands out at most MaxTotal objects at a time. When all are in use,
// Get blocks until one is returned, MaxWait elapses, or the context ends.
// Returned objects are kept idle (up to MaxIdle) and reused newest first.
//
// Objects can be validated on borrow, on return, and while idle. A background
// evictor runs every EvictionInterval: it examines up to TestsPerEviction of
// the oldest idle objects, closes those idle longer than MinEvictableIdle or
// failing validation, then tops the idle set back up to MinIdle.
//
// Pools are ordinary values; construct as many as needed with New and stop
// them with Close.
package pool
