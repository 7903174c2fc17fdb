// Package xport defines the abstract duplex byte-stream contract the
// Session depends on (spec.md §6 "Transport contract (consumed)") and a
// concrete adapter over net.Conn. Grounded on the teacher's small
// interface-at-the-seam style (its FrameWriter/ResponseWriter interfaces
// consumed by the HTTP/2 connection code), applied here to a raw transport
// seam instead of an HTTP response seam since spec.md §1 scopes the
// byte-level transport out as an external collaborator.
package xport

import (
	"io"
	"net"
	"time"
)

// Transport is the duplex byte stream a Session is built on. Implementations
// need not be safe for concurrent Read and Write calls from multiple
// goroutines simultaneously calling the *same* method, but a concurrent
// Read and a concurrent Write must not interfere with each other: the
// Session always has at most one read in flight and one write in flight at
// a time, but on two different goroutines (spec.md §5).
type Transport interface {
	io.Reader
	io.Writer

	// Close closes the underlying connection.
	Close() error

	// IsConnected reports whether the transport is still usable.
	IsConnected() bool

	// SetReadDeadline and SetWriteDeadline mirror net.Conn; a zero value
	// disables the respective deadline. Implementations that can't support
	// deadlines may no-op.
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// connTransport adapts a net.Conn to Transport.
type connTransport struct {
	net.Conn
	closed bool
}

// NewConnTransport wraps an already-connected net.Conn (for example the
// result of tls.Dial, with protocol negotiation and TLS handshake already
// done — both out of scope per spec.md §1 non-goals) as a Transport.
func NewConnTransport(c net.Conn) Transport {
	return &connTransport{Conn: c}
}

func (c *connTransport) Close() error {
	c.closed = true
	return c.Conn.Close()
}

func (c *connTransport) IsConnected() bool {
	return !c.closed
}
