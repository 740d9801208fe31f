package rediskv

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/yndnr/boxstore-go/pkg/resp"
)

// conn is one client connection.
type conn struct {
	nc      net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	timeout time.Duration
}

func dial(ctx context.Context, cfg Config) (*conn, error) {
	d := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}

	var (
		nc  net.Conn
		err error
	)
	if cfg.TLS != nil {
		td := &tls.Dialer{NetDialer: d, Config: cfg.TLS}
		nc, err = td.DialContext(ctx, "tcp", cfg.Addr())
	} else {
		nc, err = d.DialContext(ctx, "tcp", cfg.Addr())
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), err)
	}

	c := &conn{
		nc:      nc,
		br:      bufio.NewReader(nc),
		bw:      bufio.NewWriter(nc),
		timeout: cfg.Timeout,
	}

	if cfg.Password != "" {
		args := [][]byte{[]byte("AUTH")}
		if cfg.Username != "" {
			args = append(args, []byte(cfg.Username))
		}
		args = append(args, []byte(cfg.Password))
		if _, err := c.do(ctx, args...); err != nil {
			c.close()
			return nil, fmt.Errorf("auth: %w", err)
		}
	}
	if cfg.DB != 0 {
		if _, err := c.do(ctx, []byte("SELECT"), []byte(fmt.Sprint(cfg.DB))); err != nil {
			c.close()
			return nil, fmt.Errorf("select db %d: %w", cfg.DB, err)
		}
	}

	return c, nil
}

// do sends one command and reads its reply. An error reply comes back as a
// *resp.Error; the connection remains usable in that case.
func (c *conn) do(ctx context.Context, args ...[]byte) (resp.Reply, error) {
	deadline := time.Time{}
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.nc.SetDeadline(deadline); err != nil {
		return resp.Reply{}, err
	}

	if err := resp.WriteCommand(c.bw, args...); err != nil {
		return resp.Reply{}, err
	}
	if err := c.bw.Flush(); err != nil {
		return resp.Reply{}, err
	}

	reply, err := resp.ReadReply(c.br)
	if err != nil {
		return resp.Reply{}, err
	}
	if err := reply.Err(); err != nil {
		return reply, err
	}
	return reply, nil
}

func (c *conn) ping(ctx context.Context) error {
	reply, err := c.do(ctx, []byte("PING"))
	if err != nil {
		return err
	}
	if reply.Kind != resp.KindSimple || reply.Str != "PONG" {
		return fmt.Errorf("unexpected PING reply %q", reply.Str)
	}
	return nil
}

func (c *conn) close() error {
	return c.nc.Close()
}

// isServerError reports whether err is an error reply, after which the
// connection is still in a known state.
func isServerError(err error) bool {
	var re *resp.Error
	return errors.As(err, &re)
}
