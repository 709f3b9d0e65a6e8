//go:build darwin

package aio

import "golang.org/x/sys/unix"

// createWakeFD creates the pipe the Loop registers with its poller to
// interrupt a blocked PollIO when work is submitted from another
// goroutine. Darwin has no eventfd, so a self-pipe is used instead.
func createWakeFD() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func writeWake(fd int) error {
	_, err := unix.Write(fd, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func drainWake(fd int) {
	var buf [64]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}
