// Package memory provides an in-process storage.Backend.
//
// Values live in a sharded concurrent map; Swap holds the key's shard lock
// for the read and the write, which makes it atomic with respect to every
// other operation on that key. Values are copied on the way in and out.
//
// The backend serves unit tests and the boxstore-server "memory" backend
// type. State is lost on restart.
package memory
