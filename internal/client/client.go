// Package client provides a small synchronous client for the line protocol,
// used by the interactive terminal client, the CSV bulk harness, and tests.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Client is one TCP connection speaking the line protocol. Reads and writes
// are each serialized; a Client may be shared between one reader goroutine
// and one writer goroutine.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex
}

// Dial connects to addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("client: failed to connect to %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// Send writes one line, appending the terminator.
func (c *Client) Send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return fmt.Errorf("client: send failed: %w", err)
	}
	return nil
}

// ReadLine blocks until the next server line arrives and returns it without
// the terminator.
func (c *Client) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if len(line) > 0 && err == io.EOF {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// SetReadDeadline bounds the next ReadLine.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// CopyTo streams every server line to w until the connection closes. It is
// meant to run in its own goroutine.
func (c *Client) CopyTo(w io.Writer) error {
	for {
		line, err := c.ReadLine()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
