package testutil

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// TelnetClient is a minimal line-oriented client for driving a game
// server in integration tests.
type TelnetClient struct {
	conn net.Conn
	buf  strings.Builder
}

// NewTelnetClient dials the server at addr.
//
// Postcondition: Returns a connected client or an error.
func NewTelnetClient(addr string) (*TelnetClient, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &TelnetClient{conn: conn}, nil
}

// ReadUntil accumulates output until the given substring appears or the
// timeout elapses. Returns everything read so far in both cases.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 4096)
	for {
		if strings.Contains(c.buf.String(), substr) {
			out := c.buf.String()
			c.buf.Reset()
			return out, nil
		}
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return c.buf.String(), err
		}
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf.Write(chunk[:n])
		}
		if err != nil {
			out := c.buf.String()
			if strings.Contains(out, substr) {
				c.buf.Reset()
				return out, nil
			}
			return out, fmt.Errorf("waiting for %q: %w", substr, err)
		}
	}
}

// Send writes a line to the server, appending CRLF.
func (c *TelnetClient) Send(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte(line + "\r\n"))
	return err
}

// Close shuts down the connection.
func (c *TelnetClient) Close() error {
	return c.conn.Close()
}
