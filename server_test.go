//go:build linux || darwin

package aio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeTCPAddr picks an available localhost port by opening and closing a
// listener on port 0, then returning its address for NewTCPServer to bind.
func freeTCPAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestTCPServer_EchoRoundTrip(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	addr := freeTCPAddr(t)
	srv, err := NewTCPServer(loop, addr, 0, func(conn *StreamConn, peer string) {
		conn.ReadUntil([]byte("\r\n"), 0).Attach(func(f *Future) {
			if f.Err() != nil {
				return
			}
			line := f.Result().([]byte)
			reply := append([]byte("server say: "), line...)
			conn.Write(reply)
		})
	})
	require.NoError(t, err)
	defer srv.Close()

	// Give the listener a moment to be pollable before a plain net.Dial
	// connects to it from outside the loop.
	time.Sleep(10 * time.Millisecond)

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("hello\r\n"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "server say: hello\r\n", string(buf[:n]))
}
