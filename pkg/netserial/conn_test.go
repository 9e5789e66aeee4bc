package netserial

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jellexet/linewatch/pkg/accumulator"
	"github.com/jellexet/linewatch/pkg/buffer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitAvailable polls until at least want bytes are queued.
func waitAvailable(t *testing.T, c *Conn, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		n, err := c.Available()
		return err == nil && n >= want
	}, time.Second, time.Millisecond)
}

func TestConnQueuesIncomingBytes(t *testing.T) {
	client, server := net.Pipe()
	c := newConn(client)
	defer c.Close()

	_, err := c.ReadByte()
	assert.ErrorIs(t, err, accumulator.ErrNoData)

	go func() {
		_, _ = server.Write([]byte("otter"))
	}()
	waitAvailable(t, c, 5)

	var got []byte
	for i := 0; i < 5; i++ {
		b, err := c.ReadByte()
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, "otter", string(got))

	n, err := c.Available()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, server.Close())
}

func TestConnReportsPeerCloseAfterDrain(t *testing.T) {
	client, server := net.Pipe()
	c := newConn(client)
	defer c.Close()

	go func() {
		_, _ = server.Write([]byte("ab"))
		_ = server.Close()
	}()

	require.Eventually(t, func() bool {
		select {
		case <-c.done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	n, err := c.Available()
	require.NoError(t, err, "queued bytes come before the close error")
	assert.Equal(t, 2, n)
	_, _ = c.ReadByte()
	_, _ = c.ReadByte()

	_, err = c.Available()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnCloseStopsBlockedPump(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := newConn(client)

	go func() {
		// More than the queue holds, so the pump blocks on a full queue.
		_, _ = server.Write([]byte(strings.Repeat("x", queueSize+readChunk*2)))
	}()
	waitAvailable(t, c, queueSize)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "Close is idempotent")
}

func TestDialOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	lines := make(chan string, 16)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		defer close(lines)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := conn.Write([]byte("otter")); err != nil {
			return
		}
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- strings.TrimSuffix(scanner.Text(), "\r")
		}
	}()

	c, err := Dial(ln.Addr().String(), time.Second)
	require.NoError(t, err)

	a, err := accumulator.New(c, c, accumulator.DefaultOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Start())

	waitAvailable(t, c, 5)
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Poll())
	}
	assert.Equal(t, 1, a.Stats().Detections)
	require.NoError(t, c.Close())
	<-serverDone

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	assert.Equal(t, []string{
		"String Library version: " + buffer.Version,
		"o", "ot", "ott", "otte", "otter",
		"Look!  An otter in the String!",
		"otter",
		"now it's gone.",
	}, got)
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(addr, 200*time.Millisecond)
	assert.Error(t, err)
}
