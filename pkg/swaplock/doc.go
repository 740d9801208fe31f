// Package swaplock implements a cross-process mutex on top of a key-value
// store that offers nothing more than an atomic get-and-set.
//
// The lock lives in the guarded key itself. Acquiring swaps a sentinel value
// into the slot and inspects what came back:
//
//   - nothing: the key did not exist, the caller now holds it
//   - the sentinel: someone else holds it, wait and swap again
//   - anything else: that is the stored value, the caller now holds it
//
// Releasing is an ordinary write (or delete) of the real value, which
// replaces the sentinel. No separate lock manager or lease is involved, so a
// holder that never releases blocks others only until their attempt budget
// runs out; the exhausted waiter deletes the key and reports ErrTimeout.
//
// Stores that can hold an empty value distinctly from a missing key use the
// default zero-length sentinel. Stores that cannot should configure one via
// WithSentinel.
package swaplock
