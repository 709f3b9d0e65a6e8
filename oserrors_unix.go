//go:build linux || darwin

package aio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// isAgain reports whether err is one of the "try again later" conditions
// a readiness handler must absorb quietly rather than treat as a socket
// failure.
func isAgain(err error) bool {
	return err == unix.EAGAIN ||
		err == unix.EWOULDBLOCK ||
		err == unix.EINPROGRESS ||
		err == unix.ETIMEDOUT ||
		err == unix.EINTR
}

// wrapSocketError turns a raw OS error from a failed socket operation
// into the error handed to any pending reader/writer future.
func wrapSocketError(err error) error {
	return fmt.Errorf("aio: socket error: %w", err)
}

// getSocketError reads and clears SO_ERROR, the pending asynchronous
// error condition epoll/kqueue's error event is reporting.
func getSocketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}
