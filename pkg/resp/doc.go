// Package resp implements the RESP2 wire format used by Redis and by the
// BoxStore key-value server.
//
// Both directions are covered:
//
//   - ReadCommand / Write* for the server side (requests are arrays of bulk
//     strings, replies are typed values)
//   - WriteCommand / ReadReply for the client side
//
// A zero-length bulk string ("$0\r\n\r\n") and a null bulk string
// ("$-1\r\n") are kept distinct on both paths: the former decodes to a
// non-nil empty slice, the latter to nil. The session lock relies on that
// distinction because its lock marker is the empty value.
package resp
