//go:build linux

package aio

import "golang.org/x/sys/unix"

// createWakeFD creates the fd the Loop registers with its poller purely
// to interrupt a blocked PollIO when work is submitted from another
// goroutine (CallSoon/Stop called off the loop goroutine). Linux uses
// a single eventfd for both ends.
func createWakeFD() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

// writeWake signals the wake fd; eventfd accumulates a counter so
// repeated wakeups before the loop drains it are coalesced, which is fine
// — the loop only needs to know "something happened".
func writeWake(fd int) error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// drainWake consumes any pending wake notifications so the fd goes back
// to a non-readable state.
func drainWake(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}
