//go:build linux

package aio

import (
	"golang.org/x/sys/unix"
)

// epollPoller wraps a Linux epoll instance. Because the Loop that owns it
// runs single-threaded, the fd table needs no locking: RegisterFD,
// ModifyFD, UnregisterFD and PollIO's dispatch all happen on the same
// goroutine.
type epollPoller struct {
	epfd     int
	fds      map[int]IOEvents
	eventBuf []unix.EpollEvent
	closed   bool
}

func newPoller(maxEvents int) (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &epollPoller{
		epfd:     epfd,
		fds:      make(map[int]IOEvents),
		eventBuf: make([]unix.EpollEvent, maxEvents),
	}, nil
}

func (p *epollPoller) registerFD(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.fds[fd] = events
	return nil
}

func (p *epollPoller) modifyFD(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return err
	}
	p.fds[fd] = events
	return nil
}

func (p *epollPoller) unregisterFD(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}

func (p *epollPoller) pollIO(timeout int, handler IOHandler) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeout)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if _, ok := p.fds[fd]; !ok {
			// Unregistered between the syscall returning and dispatch
			// (e.g. a prior event in this same batch closed it).
			continue
		}
		handler(fd, epollToEvents(p.eventBuf[i].Events))
	}
	return n, nil
}

func (p *epollPoller) close() error {
	p.closed = true
	return unix.Close(p.epfd)
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= EventHangup
	}
	return events
}
