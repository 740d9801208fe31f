package kvserver

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/boxstore-go/internal/storage/memory"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
	"github.com/yndnr/boxstore-go/pkg/resp"
)

type testConn struct {
	*Conn
	output *bytes.Buffer
	client net.Conn
}

func newTestConn(t *testing.T) *testConn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	output := &bytes.Buffer{}
	return &testConn{
		Conn: &Conn{
			id:      "test",
			netConn: server,
			br:      bufio.NewReader(server),
			bw:      bufio.NewWriter(output),
		},
		output: output,
		client: client,
	}
}

func (tc *testConn) flush() string {
	tc.bw.Flush()
	s := tc.output.String()
	tc.output.Reset()
	return s
}

func newTestHandler(t *testing.T, cfg Config) (*commandHandler, *memory.Backend) {
	t.Helper()
	be := memory.New()
	t.Cleanup(func() { be.Close() })
	return newCommandHandler(be, cfg, logger.Slog(logger.Discard())), be
}

func run(h *commandHandler, tc *testConn, args ...string) (string, bool) {
	bargs := make([][]byte, len(args))
	for i, a := range args {
		bargs[i] = []byte(a)
	}
	ok := h.handle(context.Background(), tc.Conn, resp.CommandName(bargs[0]), bargs)
	return tc.flush(), ok
}

func TestCommandHandler_Ping(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	out, ok := run(h, tc, "PING")
	assert.True(t, ok)
	assert.Equal(t, "+PONG\r\n", out)

	out, _ = run(h, tc, "ping", "hello")
	assert.Equal(t, "$5\r\nhello\r\n", out)

	out, ok = run(h, tc, "PING", "a", "b")
	assert.False(t, ok)
	assert.Equal(t, "-ERR wrong number of arguments for 'ping' command\r\n", out)
}

func TestCommandHandler_UnknownCommand(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	out, ok := run(h, tc, "FLUSHALL")
	assert.False(t, ok)
	assert.Equal(t, "-ERR unknown command 'flushall'\r\n", out)
}

func TestCommandHandler_GetSet(t *testing.T) {
	h, be := newTestHandler(t, Config{})
	tc := newTestConn(t)

	out, _ := run(h, tc, "GET", "k")
	assert.Equal(t, "$-1\r\n", out)

	out, ok := run(h, tc, "SET", "k", "v1")
	assert.True(t, ok)
	assert.Equal(t, "+OK\r\n", out)

	out, _ = run(h, tc, "GET", "k")
	assert.Equal(t, "$2\r\nv1\r\n", out)

	out, _ = run(h, tc, "SET", "k", "v", "EX", "10")
	assert.Equal(t, "-ERR syntax error\r\n", out)

	out, _ = run(h, tc, "SET", "k")
	assert.Equal(t, "-ERR wrong number of arguments for 'set' command\r\n", out)

	v, err := be.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestCommandHandler_EmptyValueIsNotNull(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	run(h, tc, "SET", "k", "")
	out, _ := run(h, tc, "GET", "k")
	assert.Equal(t, "$0\r\n\r\n", out)
}

func TestCommandHandler_GetSetCommand(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	out, ok := run(h, tc, "GETSET", "k", "")
	assert.True(t, ok)
	assert.Equal(t, "$-1\r\n", out, "absent key returns null")

	out, _ = run(h, tc, "GETSET", "k", "state")
	assert.Equal(t, "$0\r\n\r\n", out, "empty previous value returns empty bulk")

	out, _ = run(h, tc, "GETSET", "k", "next")
	assert.Equal(t, "$5\r\nstate\r\n", out)

	out, _ = run(h, tc, "GETSET", "k")
	assert.Equal(t, "-ERR wrong number of arguments for 'getset' command\r\n", out)
}

func TestCommandHandler_DelExists(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	run(h, tc, "SET", "a", "1")
	run(h, tc, "SET", "b", "2")

	out, _ := run(h, tc, "EXISTS", "a", "b", "c")
	assert.Equal(t, ":2\r\n", out)

	out, _ = run(h, tc, "DEL", "a", "c")
	assert.Equal(t, ":1\r\n", out)

	out, _ = run(h, tc, "EXISTS", "a")
	assert.Equal(t, ":0\r\n", out)

	out, _ = run(h, tc, "DEL")
	assert.Equal(t, "-ERR wrong number of arguments for 'del' command\r\n", out)
}

func TestCommandHandler_Select(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	out, _ := run(h, tc, "SELECT", "0")
	assert.Equal(t, "+OK\r\n", out)

	out, _ = run(h, tc, "SELECT", "3")
	assert.Equal(t, "-ERR DB index is out of range\r\n", out)
}

func TestCommandHandler_Auth(t *testing.T) {
	h, _ := newTestHandler(t, Config{Password: "s3cret"})
	tc := newTestConn(t)

	out, ok := run(h, tc, "GET", "k")
	assert.False(t, ok)
	assert.Equal(t, "-NOAUTH Authentication required.\r\n", out)

	out, _ = run(h, tc, "PING")
	assert.Equal(t, "+PONG\r\n", out, "PING is allowed before AUTH")

	out, _ = run(h, tc, "AUTH", "wrong")
	assert.Contains(t, out, "-WRONGPASS")
	assert.False(t, tc.authenticated.Load())

	out, _ = run(h, tc, "AUTH", "default", "s3cret")
	assert.Equal(t, "+OK\r\n", out)
	assert.True(t, tc.authenticated.Load())

	out, _ = run(h, tc, "GET", "k")
	assert.Equal(t, "$-1\r\n", out)
}

func TestCommandHandler_AuthWithoutPassword(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	out, ok := run(h, tc, "AUTH", "x")
	assert.False(t, ok)
	assert.Contains(t, out, "without any password configured")

	out, _ = run(h, tc, "AUTH")
	assert.Equal(t, "-ERR wrong number of arguments for 'auth' command\r\n", out)
}

func TestCommandHandler_Quit(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	out, ok := run(h, tc, "QUIT")
	assert.True(t, ok)
	assert.Equal(t, "+OK\r\n", out)
	assert.True(t, tc.closed.Load())
}

func TestCommandHandler_RateLimit(t *testing.T) {
	h, _ := newTestHandler(t, Config{RateLimit: 2})
	tc := newTestConn(t)

	run(h, tc, "GET", "k")
	run(h, tc, "GET", "k")
	out, ok := run(h, tc, "GET", "k")
	assert.False(t, ok)
	assert.Equal(t, "-ERR rate limit exceeded\r\n", out)
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	rl := newRateLimiter(1)
	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }
	rl.lastSweep = clock

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.True(t, rl.allow(ip))
	}
	assert.False(t, rl.allow("10.0.0.1"), "burst of one is spent")
	assert.Equal(t, 3, rl.size())

	clock = clock.Add(limiterIdleTTL / 2)
	assert.True(t, rl.allow("10.0.0.1"))

	clock = clock.Add(limiterIdleTTL / 2)
	assert.True(t, rl.allow("10.0.0.4"))
	assert.Equal(t, 2, rl.size(), "idle clients dropped, active ones kept")
}

func TestCommandHandler_Scan(t *testing.T) {
	h, be := newTestHandler(t, Config{})
	tc := newTestConn(t)
	ctx := context.Background()

	for _, k := range []string{"ses_a-1", "ses_a-2", "ses_a-3", "ses_b-1", "id_a"} {
		require.NoError(t, be.Set(ctx, k, []byte("x")))
	}

	out, ok := run(h, tc, "SCAN", "0", "MATCH", "ses_a-*", "COUNT", "2")
	assert.True(t, ok)
	assert.Equal(t, "*2\r\n$1\r\n2\r\n*2\r\n$7\r\nses_a-1\r\n$7\r\nses_a-2\r\n", out)

	out, _ = run(h, tc, "SCAN", "2", "MATCH", "ses_a-*", "COUNT", "2")
	assert.Equal(t, "*2\r\n$1\r\n0\r\n*1\r\n$7\r\nses_a-3\r\n", out)

	out, _ = run(h, tc, "SCAN", "0", "MATCH", "ses_?-1")
	assert.Equal(t, "*2\r\n$1\r\n0\r\n*2\r\n$7\r\nses_a-1\r\n$7\r\nses_b-1\r\n", out)

	out, _ = run(h, tc, "SCAN", "9")
	assert.Equal(t, "*2\r\n$1\r\n0\r\n*0\r\n", out)
}

func TestCommandHandler_ScanErrors(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	tc := newTestConn(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no cursor", []string{"SCAN"}, "-ERR wrong number of arguments for 'scan' command\r\n"},
		{"bad cursor", []string{"SCAN", "x"}, "-ERR invalid cursor\r\n"},
		{"dangling option", []string{"SCAN", "0", "MATCH"}, "-ERR syntax error\r\n"},
		{"unknown option", []string{"SCAN", "0", "TYPE", "string"}, "-ERR syntax error\r\n"},
		{"bad count", []string{"SCAN", "0", "COUNT", "0"}, "-ERR value is not an integer or out of range\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := run(h, tc, tt.args...)
			assert.False(t, ok)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCommandLabel(t *testing.T) {
	assert.Equal(t, "GETSET", commandLabel("GETSET"))
	assert.Equal(t, "UNKNOWN", commandLabel("FLUSHALL"))
}

