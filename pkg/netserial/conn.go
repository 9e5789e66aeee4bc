// Package netserial reaches a serial line exported over telnet by a bridge
// such as ser2net.
package netserial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ziutek/telnet"

	"github.com/jellexet/linewatch/pkg/accumulator"
)

const (
	// queueSize bounds bytes read from the network but not yet consumed.
	queueSize = 4096
	readChunk = 256
	lineEnd   = "\r\n"
)

// Conn is a telnet connection usable as an accumulator Source and Sink.
// A background goroutine moves received bytes into a queue so Available
// never blocks.
type Conn struct {
	conn  io.ReadWriteCloser
	queue chan byte
	quit  chan struct{}
	done  chan struct{}
	err   error // read error that stopped the pump, valid after done is closed

	closeOnce sync.Once
	closeErr  error
}

var (
	_ accumulator.Source = (*Conn)(nil)
	_ accumulator.Sink   = (*Conn)(nil)
)

// Dial connects to a telnet endpoint such as "localhost:2000".
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	tc, err := telnet.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("netserial: dial %s: %w", addr, err)
	}
	return newConn(tc), nil
}

func newConn(rwc io.ReadWriteCloser) *Conn {
	c := &Conn{
		conn:  rwc,
		queue: make(chan byte, queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Conn) pump() {
	defer close(c.done)

	buf := make([]byte, readChunk)
	for {
		n, err := c.conn.Read(buf)
		for _, b := range buf[:n] {
			select {
			case c.queue <- b:
			case <-c.quit:
				return
			}
		}
		if err != nil {
			c.err = err
			return
		}
	}
}

// Available returns the number of queued bytes. Once the connection has
// failed and the queue is drained it returns the read error.
func (c *Conn) Available() (int, error) {
	if n := len(c.queue); n > 0 {
		return n, nil
	}
	select {
	case <-c.done:
	default:
		return 0, nil
	}
	// The pump has exited, nothing more can be queued.
	if n := len(c.queue); n > 0 {
		return n, nil
	}
	if errors.Is(c.err, io.EOF) {
		return 0, fmt.Errorf("netserial: connection closed by peer: %w", c.err)
	}
	if c.err != nil {
		return 0, fmt.Errorf("netserial: read: %w", c.err)
	}
	return 0, errors.New("netserial: connection closed")
}

// ReadByte takes one queued byte or returns accumulator.ErrNoData.
func (c *Conn) ReadByte() (byte, error) {
	select {
	case b := <-c.queue:
		return b, nil
	default:
		return 0, accumulator.ErrNoData
	}
}

func (c *Conn) WriteString(s string) error {
	_, err := io.WriteString(c.conn, s)
	return err
}

// WriteLine writes s followed by CRLF
func (c *Conn) WriteLine(s string) error {
	return c.WriteString(s + lineEnd)
}

// Close shuts the connection and waits for the reader to exit.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.closeErr = c.conn.Close()
		<-c.done
	})
	return c.closeErr
}
