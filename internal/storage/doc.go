// Package storage defines the key-value backend contract the session store
// is built on, together with the embedded Badger implementation.
//
// Every backend offers get, set, delete, exists and an atomic swap that
// writes a new value and returns the previous one. The swap distinguishes an
// absent key (nil) from a stored empty value (non-nil, zero length); the
// session lock relies on that distinction.
//
// Implementations:
//
//   - BadgerBackend: single-node persistent storage (this package)
//   - memory.Backend: in-process sharded map (subpackage memory)
//   - rediskv.Backend: RESP client for Redis or boxstore-server (subpackage rediskv)
package storage
