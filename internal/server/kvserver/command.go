package kvserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/pkg/resp"
)

// maxKeysPerCommand bounds DEL and EXISTS fan-out.
const maxKeysPerCommand = 1000

// maxScanCount bounds the COUNT hint of SCAN.
const maxScanCount = 10000

var knownCommands = map[string]bool{
	"PING": true, "AUTH": true, "QUIT": true, "SELECT": true,
	"GET": true, "SET": true, "GETSET": true, "DEL": true,
	"EXISTS": true, "SCAN": true,
}

// commandLabel bounds metric label cardinality to the known commands.
func commandLabel(name string) string {
	if knownCommands[name] {
		return name
	}
	return "UNKNOWN"
}

// limiterIdleTTL is how long a client's bucket survives without traffic.
// An idle bucket is full again long before this, so dropping it is lossless.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Buckets idle for
// limiterIdleTTL are swept on a later call.
type rateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(perSecond int) *rateLimiter {
	return &rateLimiter{
		limiters:  make(map[string]*clientLimiter),
		limit:     rate.Limit(perSecond),
		burst:     perSecond,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterIdleTTL {
		rl.sweep(now)
	}
	cl, ok := rl.limiters[ip]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()
	return cl.lim.AllowN(now, 1)
}

// sweep drops idle buckets. Caller holds mu.
func (rl *rateLimiter) sweep(now time.Time) {
	for ip, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) >= limiterIdleTTL {
			delete(rl.limiters, ip)
		}
	}
	rl.lastSweep = now
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

type commandHandler struct {
	backend  storage.Backend
	password string
	limiter  *rateLimiter
	logger   *slog.Logger
}

func newCommandHandler(backend storage.Backend, cfg Config, logger *slog.Logger) *commandHandler {
	h := &commandHandler{
		backend:  backend,
		password: cfg.Password,
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		h.limiter = newRateLimiter(cfg.RateLimit)
	}
	return h
}

// handle runs one command and writes its reply. It reports whether the
// command succeeded.
func (h *commandHandler) handle(ctx context.Context, c *Conn, name string, args [][]byte) bool {
	switch name {
	case "PING":
		return h.handlePing(c, args)
	case "AUTH":
		return h.handleAuth(c, args)
	case "QUIT":
		_ = resp.WriteSimpleString(c.bw, "OK")
		_ = c.bw.Flush()
		_ = c.Close()
		return true
	}

	if h.password != "" && !c.authenticated.Load() {
		return fail(c, "NOAUTH Authentication required.")
	}

	if h.limiter != nil && !h.limiter.allow(clientIP(c.RemoteAddr())) {
		return fail(c, "ERR rate limit exceeded")
	}

	switch name {
	case "SELECT":
		return h.handleSelect(c, args)
	case "GET":
		return h.handleGet(ctx, c, args)
	case "SET":
		return h.handleSet(ctx, c, args)
	case "GETSET":
		return h.handleGetSet(ctx, c, args)
	case "DEL":
		return h.handleDel(ctx, c, args)
	case "EXISTS":
		return h.handleExists(ctx, c, args)
	case "SCAN":
		return h.handleScan(ctx, c, args)
	default:
		return fail(c, "ERR unknown command '"+strings.ToLower(name)+"'")
	}
}

func fail(c *Conn, msg string) bool {
	_ = resp.WriteError(c.bw, msg)
	return false
}

func wrongArgs(c *Conn, name string) bool {
	return fail(c, "ERR wrong number of arguments for '"+strings.ToLower(name)+"' command")
}

func (h *commandHandler) backendError(c *Conn, op string, err error) bool {
	h.logger.Warn("backend call failed", "op", op, "conn_id", c.id, "error", err)
	return fail(c, "ERR backend: "+err.Error())
}

func (h *commandHandler) handlePing(c *Conn, args [][]byte) bool {
	switch len(args) {
	case 1:
		_ = resp.WriteSimpleString(c.bw, "PONG")
	case 2:
		_ = resp.WriteBulk(c.bw, args[1])
	default:
		return wrongArgs(c, "PING")
	}
	return true
}

// AUTH <password> | AUTH <username> <password>. The username is accepted
// and ignored.
func (h *commandHandler) handleAuth(c *Conn, args [][]byte) bool {
	if len(args) != 2 && len(args) != 3 {
		return wrongArgs(c, "AUTH")
	}
	if h.password == "" {
		return fail(c, "ERR AUTH <password> called without any password configured for the default user.")
	}

	given := args[len(args)-1]
	if subtle.ConstantTimeCompare(given, []byte(h.password)) != 1 {
		h.logger.Warn("auth failed", "conn_id", c.id, "remote", c.RemoteAddr().String())
		return fail(c, "WRONGPASS invalid username-password pair or user is disabled.")
	}

	c.authenticated.Store(true)
	_ = resp.WriteSimpleString(c.bw, "OK")
	return true
}

func (h *commandHandler) handleSelect(c *Conn, args [][]byte) bool {
	if len(args) != 2 {
		return wrongArgs(c, "SELECT")
	}
	if string(args[1]) != "0" {
		return fail(c, "ERR DB index is out of range")
	}
	_ = resp.WriteSimpleString(c.bw, "OK")
	return true
}

// GET <key>
func (h *commandHandler) handleGet(ctx context.Context, c *Conn, args [][]byte) bool {
	if len(args) != 2 {
		return wrongArgs(c, "GET")
	}
	v, err := h.backend.Get(ctx, string(args[1]))
	if errors.Is(err, storage.ErrKeyNotFound) {
		_ = resp.WriteNullBulk(c.bw)
		return true
	}
	if err != nil {
		return h.backendError(c, "get", err)
	}
	_ = resp.WriteBulk(c.bw, nonNil(v))
	return true
}

// SET <key> <value>. Expiry and conditional options are not supported.
func (h *commandHandler) handleSet(ctx context.Context, c *Conn, args [][]byte) bool {
	if len(args) < 3 {
		return wrongArgs(c, "SET")
	}
	if len(args) > 3 {
		return fail(c, "ERR syntax error")
	}
	if err := h.backend.Set(ctx, string(args[1]), nonNil(args[2])); err != nil {
		return h.backendError(c, "set", err)
	}
	_ = resp.WriteSimpleString(c.bw, "OK")
	return true
}

// GETSET <key> <value>
func (h *commandHandler) handleGetSet(ctx context.Context, c *Conn, args [][]byte) bool {
	if len(args) != 3 {
		return wrongArgs(c, "GETSET")
	}
	prev, err := h.backend.Swap(ctx, string(args[1]), nonNil(args[2]))
	if err != nil {
		return h.backendError(c, "getset", err)
	}
	// nil prev becomes a null bulk, empty prev an empty bulk.
	_ = resp.WriteBulk(c.bw, prev)
	return true
}

// DEL <key> [key ...]
func (h *commandHandler) handleDel(ctx context.Context, c *Conn, args [][]byte) bool {
	if len(args) < 2 {
		return wrongArgs(c, "DEL")
	}
	if len(args)-1 > maxKeysPerCommand {
		return fail(c, "ERR too many keys")
	}

	deleted := 0
	for _, k := range args[1:] {
		key := string(k)
		ok, err := h.backend.Exists(ctx, key)
		if err != nil {
			return h.backendError(c, "del", err)
		}
		if err := h.backend.Delete(ctx, key); err != nil {
			return h.backendError(c, "del", err)
		}
		if ok {
			deleted++
		}
	}
	_ = resp.WriteInteger(c.bw, int64(deleted))
	return true
}

// EXISTS <key> [key ...]
func (h *commandHandler) handleExists(ctx context.Context, c *Conn, args [][]byte) bool {
	if len(args) < 2 {
		return wrongArgs(c, "EXISTS")
	}
	if len(args)-1 > maxKeysPerCommand {
		return fail(c, "ERR too many keys")
	}

	n := 0
	for _, k := range args[1:] {
		ok, err := h.backend.Exists(ctx, string(k))
		if err != nil {
			return h.backendError(c, "exists", err)
		}
		if ok {
			n++
		}
	}
	_ = resp.WriteInteger(c.bw, int64(n))
	return true
}

// SCAN <cursor> [MATCH pattern] [COUNT count]
//
// The cursor is an offset into the sorted key list matching the pattern's
// literal prefix. Keys added or removed between calls may shift results.
func (h *commandHandler) handleScan(ctx context.Context, c *Conn, args [][]byte) bool {
	if len(args) < 2 {
		return wrongArgs(c, "SCAN")
	}

	cursor, err := strconv.Atoi(string(args[1]))
	if err != nil || cursor < 0 {
		return fail(c, "ERR invalid cursor")
	}

	pattern := "*"
	count := 10
	for i := 2; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return fail(c, "ERR syntax error")
		}
		switch strings.ToUpper(string(args[i])) {
		case "MATCH":
			pattern = string(args[i+1])
		case "COUNT":
			n, err := strconv.Atoi(string(args[i+1]))
			if err != nil || n < 1 {
				return fail(c, "ERR value is not an integer or out of range")
			}
			count = min(n, maxScanCount)
		default:
			return fail(c, "ERR syntax error")
		}
	}

	var keys []string
	err = h.backend.Scan(ctx, literalPrefix(pattern), func(key string) bool {
		if matchGlob(pattern, key) {
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return h.backendError(c, "scan", err)
	}
	sort.Strings(keys)

	var page []string
	next := 0
	if cursor < len(keys) {
		end := min(cursor+count, len(keys))
		page = keys[cursor:end]
		if end < len(keys) {
			next = end
		}
	}

	_ = resp.WriteArrayHeader(c.bw, 2)
	_ = resp.WriteBulkString(c.bw, strconv.Itoa(next))
	_ = resp.WriteArrayHeader(c.bw, len(page))
	for _, k := range page {
		_ = resp.WriteBulkString(c.bw, k)
	}
	return true
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
