//go:build linux || darwin

package aio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func datagramPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestDatagram_ReadPackageServesBufferedMessageViaCallSoon(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	a, b := datagramPair(t)
	d, err := NewDatagram(loop, a, "local", func(data []byte, _ string) error {
		_, err := unix.Write(b, data)
		return err
	})
	require.NoError(t, err)

	_, err = unix.Write(b, []byte("payload"))
	require.NoError(t, err)

	// Give the loop a tick to let the readiness handler buffer the
	// datagram before ReadPackage is called.
	time.Sleep(20 * time.Millisecond)

	result := make(chan packet, 1)
	loop.CallSoon(func() {
		d.ReadPackage(0).Attach(func(f *Future) {
			result <- f.Result().(packet)
		})
	})

	select {
	case p := <-result:
		assert.Equal(t, "payload", string(p.data))
	case <-time.After(time.Second):
		t.Fatal("read_package never resolved")
	}
}

func TestDatagram_ReadPackageParksFutureWhenNothingBuffered(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	a, b := datagramPair(t)
	d, err := NewDatagram(loop, a, "local", func(data []byte, _ string) error {
		_, err := unix.Write(b, data)
		return err
	})
	require.NoError(t, err)

	result := make(chan packet, 1)
	loop.CallSoon(func() {
		d.ReadPackage(0).Attach(func(f *Future) {
			result <- f.Result().(packet)
		})
	})

	time.Sleep(10 * time.Millisecond)
	_, err = unix.Write(b, []byte("later"))
	require.NoError(t, err)

	select {
	case p := <-result:
		assert.Equal(t, "later", string(p.data))
	case <-time.After(time.Second):
		t.Fatal("pending read_package never resolved")
	}
}

func TestDatagram_ReadPackageTimeout(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	a, _ := datagramPair(t)
	d, err := NewDatagram(loop, a, "local", func(data []byte, to string) error {
		return sendtoAddr(a, data, to)
	})
	require.NoError(t, err)

	result := make(chan error, 1)
	loop.CallSoon(func() {
		d.ReadPackage(20 * time.Millisecond).Attach(func(f *Future) {
			result <- f.Err()
		})
	})

	select {
	case err := <-result:
		var ce *CancelledError
		require.ErrorAs(t, err, &ce)
		var te *TimeoutError
		assert.ErrorAs(t, ce.Cause, &te)
	case <-time.After(time.Second):
		t.Fatal("datagram read timeout never fired")
	}
}
