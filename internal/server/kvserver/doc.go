// Package kvserver serves a storage.Backend over the Redis protocol (RESP2).
//
// It implements the subset of commands the session store's client needs:
// PING, AUTH, QUIT, SELECT (database 0 only), GET, SET, GETSET, DEL, EXISTS
// and SCAN. GETSET runs the backend's atomic swap, so any number of
// boxstore processes can share one server and get the same mutual
// exclusion they would get from Redis.
//
// When a password is configured every command except PING, AUTH and QUIT
// requires a prior successful AUTH. Commands are rate limited per client IP.
package kvserver
