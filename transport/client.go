package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/indigo-web/utils/unreader"
	"github.com/rrwifi/webserver/http/status"
)

// Client is a bounded view of the connection. Read returns a slice of the internal buffer,
// which is valid until the next Read. Errors are classified: a deadline exceeding results
// in status.ErrTimeout, everything else in status.ErrDisconnect.
type Client interface {
	Read() ([]byte, error)
	Unread([]byte)
	Write([]byte) error
	// SetTimeout changes the deadline applied to every following read.
	SetTimeout(time.Duration)
	// Connected reports false after the peer went away or the client was closed.
	Connected() bool
	Conn() net.Conn
	Remote() net.Addr
	Close() error
}

type client struct {
	unreader  *unreader.Unreader
	buff      []byte
	conn      net.Conn
	timeout   time.Duration
	deferred  error
	connected bool
}

func NewClient(conn net.Conn, timeout time.Duration, buff []byte) Client {
	return &client{
		unreader:  new(unreader.Unreader),
		buff:      buff,
		conn:      conn,
		timeout:   timeout,
		connected: true,
	}
}

func (c *client) Read() ([]byte, error) {
	return c.unreader.PendingOr(func() ([]byte, error) {
		if c.deferred != nil {
			return nil, c.deferred
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, c.fail(err)
		}

		n, err := c.conn.Read(c.buff)
		if err != nil {
			err = c.fail(err)
			if n > 0 {
				// hand out what was received and report the error on the next read
				c.deferred = err
				err = nil
			}
		}

		return c.buff[:n], err
	})
}

func (c *client) fail(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return status.ErrTimeout
	}

	c.connected = false
	if errors.Is(err, io.EOF) {
		return status.ErrDisconnect
	}

	return fmt.Errorf("%w: %s", status.ErrDisconnect, err)
}

func (c *client) Unread(b []byte) {
	c.unreader.Unread(b)
}

func (c *client) Write(b []byte) error {
	if _, err := c.conn.Write(b); err != nil {
		c.connected = false
		return fmt.Errorf("%w: %s", status.ErrDisconnect, err)
	}

	return nil
}

func (c *client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *client) Connected() bool {
	return c.connected
}

func (c *client) Conn() net.Conn {
	return c.conn
}

func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *client) Close() error {
	c.connected = false
	c.unreader.Reset()
	return c.conn.Close()
}
