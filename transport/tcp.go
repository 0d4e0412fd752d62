package transport

import (
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"
)

type listener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// TCP accepts connections one at a time. The next connection isn't accepted until the
// callback for the previous one returns, so at most a single client is served at once.
type TCP struct {
	l    listener
	stop *atomic.Bool
}

func NewTCP() *TCP {
	return &TCP{
		stop: new(atomic.Bool),
	}
}

func (t *TCP) Bind(addr string) error {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return err
	}

	t.l, err = net.ListenTCP("tcp", tcpaddr)
	return err
}

// Addr returns the bound address. Useful when bound to port 0.
func (t *TCP) Addr() net.Addr {
	return t.l.Addr()
}

// Listen runs the accept loop. The accept call is interrupted every interruptPeriod in
// order to check whether Stop was called.
func (t *TCP) Listen(interruptPeriod time.Duration, cb func(conn net.Conn)) error {
	for !t.stop.Load() {
		if err := t.l.SetDeadline(time.Now().Add(interruptPeriod)); err != nil {
			return err
		}

		conn, err := t.l.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			if t.stop.Load() {
				return nil
			}

			return err
		}

		cb(conn)
	}

	return nil
}

func (t *TCP) Stop() {
	t.stop.Store(true)
}

func (t *TCP) Close() error {
	return t.l.Close()
}
