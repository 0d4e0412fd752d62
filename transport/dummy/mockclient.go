package dummy

import (
	"net"
	"time"

	"github.com/indigo-web/utils/unreader"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/transport"
)

var _ transport.Client = new(Client)

// Client hands out the chunks it was initialised with, one per read. After the last chunk
// it behaves as if the peer disconnected, unless configured otherwise. All the written
// data is journaled.
type Client struct {
	unreader   *unreader.Unreader
	data       [][]byte
	pointer    int
	loop       bool
	end        error
	closed     bool
	journaling bool
	written    []byte
	writes     int
	timeouts   []time.Duration
}

func NewMockClient(data ...[]byte) *Client {
	return &Client{
		unreader:   new(unreader.Unreader),
		data:       data,
		end:        status.ErrDisconnect,
		journaling: true,
	}
}

func (c *Client) Read() ([]byte, error) {
	return c.unreader.PendingOr(func() ([]byte, error) {
		if c.closed {
			return nil, status.ErrDisconnect
		}

		if c.pointer >= len(c.data) {
			if !c.loop || len(c.data) == 0 {
				if c.end == status.ErrDisconnect {
					c.closed = true
				}

				return nil, c.end
			}

			c.pointer = 0
		}

		piece := c.data[c.pointer]
		c.pointer++

		return piece, nil
	})
}

func (c *Client) Unread(b []byte) {
	c.unreader.Unread(b)
}

func (c *Client) Write(p []byte) error {
	if c.closed {
		return status.ErrDisconnect
	}

	c.writes++
	if c.journaling {
		c.written = append(c.written, p...)
	}

	return nil
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeouts = append(c.timeouts, timeout)
}

func (c *Client) Connected() bool {
	return !c.closed
}

func (c *Client) Conn() net.Conn {
	return new(Conn).Nop()
}

func (*Client) Remote() net.Addr {
	return nil
}

func (c *Client) Close() error {
	c.closed = true
	return nil
}

// LoopReads makes the client start from the first chunk after the last one was read.
func (c *Client) LoopReads() *Client {
	c.loop = true
	return c
}

// TimeoutAfter makes reads past the last chunk fail with status.ErrTimeout, as if the
// peer stayed connected but silent.
func (c *Client) TimeoutAfter() *Client {
	c.end = status.ErrTimeout
	return c
}

func (c *Client) Journaling(flag bool) *Client {
	c.journaling = flag
	return c
}

func (c *Client) Written() string {
	if !c.journaling {
		panic("mock client: cannot access written data: journaling is disabled!")
	}

	return string(c.written)
}

// Writes returns the number of Write calls made.
func (c *Client) Writes() int {
	return c.writes
}

// Timeouts returns all the read timeouts set, in order.
func (c *Client) Timeouts() []time.Duration {
	return c.timeouts
}

func (c *Client) Closed() bool {
	return c.closed
}
