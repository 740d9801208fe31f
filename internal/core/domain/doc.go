// Package domain defines the value types of the session checkout store:
// record keys, one-time keys, and the coded errors returned to callers.
//
// Nothing here performs I/O.
package domain
