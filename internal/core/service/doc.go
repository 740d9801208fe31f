// Package service implements the session checkout store.
//
// Store gives a messaging layer exclusive, crash-safe access to per-peer
// session state kept in a shared key-value backend:
//
//   - Checkout / Checkin: acquire-and-read and write-and-release of one
//     session record, built on pkg/swaplock
//   - GetIdentity / PutIdentityIfAbsent: write-once identity key material
//   - GetAllOneTimeKeys / PutOneTimeKey: legacy one-time pre-keys (deprecated)
//   - PurgeOwner: removes everything stored for one owner
//
// A Store is safe for concurrent use by many goroutines, and many processes
// may share one backend. Mutual exclusion per record relies only on the
// backend's atomic swap.
package service
