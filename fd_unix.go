//go:build linux || darwin

package aio

import (
	"golang.org/x/sys/unix"
)

// closeFD closes a raw file descriptor.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD reads from a raw file descriptor, passing EAGAIN/EWOULDBLOCK
// through unchanged so callers can treat them as "no data right now".
func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeFD writes to a raw file descriptor.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// setNonblock puts fd into non-blocking mode, required before it can be
// registered with the readiness backend.
func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
