package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits to prevent DoS attacks.
const (
	// MaxArrayLen limits the number of elements in a RESP array.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512KB).
	// Ratchet state and key material are a few KB at most.
	MaxBulkLen = 512 * 1024

	// MaxInlineLen limits inline command line length (4KB).
	MaxInlineLen = 4 * 1024

	// maxReplyDepth bounds nested arrays in replies (SCAN returns depth 2).
	maxReplyDepth = 4
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Kind identifies the type of a reply by its RESP2 prefix byte.
type Kind byte

const (
	KindSimple  Kind = '+'
	KindError   Kind = '-'
	KindInteger Kind = ':'
	KindBulk    Kind = '$'
	KindArray   Kind = '*'
)

// Reply is a decoded server reply.
type Reply struct {
	Kind  Kind
	Str   string  // simple string or error message
	Int   int64   // integer reply
	Bulk  []byte  // bulk payload; nil when Null
	Elems []Reply // array elements
	Null  bool    // null bulk string or null array
}

// Error is an error reply sent by the server ("-ERR ...", "-NOAUTH ...").
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Prefix returns the first word of the error message, e.g. "ERR" or "NOAUTH".
func (e *Error) Prefix() string {
	if i := strings.IndexByte(e.Message, ' '); i > 0 {
		return e.Message[:i]
	}
	return e.Message
}

// Err returns the reply as an error if it is an error reply.
func (r Reply) Err() error {
	if r.Kind == KindError {
		return &Error{Message: r.Str}
	}
	return nil
}

// ReadCommand reads one client request: either an array of bulk strings or
// an inline command line. Returns nil args for an empty request.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}

	if b[0] == '*' {
		return readArrayCommand(r)
	}

	// Inline command, used by telnet-style clients: "PING\r\n"
	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, len(fields))
	for _, f := range fields {
		out = append(out, []byte(f))
	}
	return out, nil
}

func readArrayCommand(r *bufio.Reader) ([][]byte, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return nil, err
	}
	n, err := parseLength(line, '*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		hdr, err := readLine(r, 64)
		if err != nil {
			return nil, err
		}
		// Some clients send simple strings as arguments.
		if len(hdr) >= 1 && hdr[0] == '+' {
			out = append(out, []byte(hdr[1:]))
			continue
		}
		arg, err := readBulkBody(r, hdr)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

// ReadReply reads one server reply.
func ReadReply(r *bufio.Reader) (Reply, error) {
	return readReply(r, 0)
}

func readReply(r *bufio.Reader, depth int) (Reply, error) {
	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return Reply{}, err
	}
	if line == "" {
		return Reply{}, fmt.Errorf("%w: empty reply line", ErrProtocol)
	}

	switch Kind(line[0]) {
	case KindSimple:
		return Reply{Kind: KindSimple, Str: line[1:]}, nil
	case KindError:
		return Reply{Kind: KindError, Str: line[1:]}, nil
	case KindInteger:
		n, err := strconv.ParseInt(line[1:], 10, 64)
		if err != nil {
			return Reply{}, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line[1:])
		}
		return Reply{Kind: KindInteger, Int: n}, nil
	case KindBulk:
		b, err := readBulkBody(r, line)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Kind: KindBulk, Bulk: b, Null: b == nil}, nil
	case KindArray:
		if depth >= maxReplyDepth {
			return Reply{}, fmt.Errorf("%w: reply nesting exceeds %d", ErrLimitExceeded, maxReplyDepth)
		}
		n, err := parseLength(line, '*')
		if err != nil {
			return Reply{}, err
		}
		if n < 0 {
			return Reply{Kind: KindArray, Null: true}, nil
		}
		if n > MaxArrayLen {
			return Reply{}, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
		}
		elems := make([]Reply, 0, n)
		for i := 0; i < n; i++ {
			e, err := readReply(r, depth+1)
			if err != nil {
				return Reply{}, err
			}
			elems = append(elems, e)
		}
		return Reply{Kind: KindArray, Elems: elems}, nil
	default:
		return Reply{}, fmt.Errorf("%w: unexpected reply type %q", ErrProtocol, line[0])
	}
}

// readBulkBody reads the payload announced by a "$<n>" header line.
// "$-1" yields nil; "$0" yields a non-nil empty slice.
func readBulkBody(r *bufio.Reader, hdr string) ([]byte, error) {
	if len(hdr) < 2 || hdr[0] != '$' {
		return nil, fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(hdr[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n > MaxBulkLen {
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n:n], nil
}

func parseLength(line string, prefix byte) (int, error) {
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected %q header", ErrProtocol, prefix)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length", ErrProtocol)
	}
	return n, nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}

	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}

// CommandName returns the upper-cased command name of a request.
func CommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
