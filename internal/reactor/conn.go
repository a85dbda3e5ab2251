package reactor

import (
	"crypto/tls"
	"net"
)

// lineConn is the uniform byte-oriented façade the framer and loop read
// and write through, whether the underlying socket is plaintext or TLS
// (spec.md §4.I's TLS adapter, generalized to cover both flavors with
// one interface since Go's *tls.Conn already satisfies net.Conn).
type lineConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// CloseGraceful attempts a clean shutdown before the socket is closed.
	CloseGraceful() error
	RemoteAddr() string
}

type plainConn struct {
	net.Conn
}

func newPlainConn(c net.Conn) lineConn {
	return plainConn{Conn: c}
}

func (c plainConn) CloseGraceful() error {
	return c.Conn.Close()
}

func (c plainConn) RemoteAddr() string {
	if a := c.Conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return "unknown"
}

type tlsConn struct {
	*tls.Conn
}

func newTLSConn(c *tls.Conn) lineConn {
	return tlsConn{Conn: c}
}

// CloseGraceful sends a TLS close_notify before closing the socket, per
// spec.md §4.I's "attempts a bidirectional shutdown before socket close".
func (c tlsConn) CloseGraceful() error {
	_ = c.Conn.CloseWrite()
	return c.Conn.Close()
}

func (c tlsConn) RemoteAddr() string {
	if a := c.Conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return "unknown"
}

// boundConn is the lineConn a session actually receives as its Conn: a
// plain/tlsConn plus the means to schedule a callback back onto the
// dispatch goroutine. A session that needs to do blocking I/O (a DNS
// lookup, say) runs it on its own goroutine and calls Schedule to apply
// the result, the same way readLoop posts line events back rather than
// touching session state itself.
type boundConn struct {
	lineConn
	loop *Loop
	id   uint64
}

// Schedule queues fn to run on the dispatch goroutine for this
// connection. fn is silently dropped if the connection has since been
// torn down, so callers never need to check liveness themselves.
func (b boundConn) Schedule(fn func()) {
	b.loop.events <- event{kind: evFunc, id: b.id, fn: fn}
}
