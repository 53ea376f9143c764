package server

import (
	"io"
	"net"
	"sync"
)

// Conn wraps a net.Conn with a write mutex so that notifications written by
// other handlers never interleave with the owner's replies. It satisfies
// registry.LineWriter.
type Conn struct {
	nc      net.Conn
	writeMu sync.Mutex
}

// NewConn wraps an accepted connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// WriteString writes one line (terminator included) to the socket.
func (c *Conn) WriteString(s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := io.WriteString(c.nc, s)
	return err
}

// Close closes the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	return c.nc.Close()
}
