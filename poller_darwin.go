//go:build darwin

package aio

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller wraps a Darwin/BSD kqueue instance. As with epollPoller,
// the fd table needs no locking: it is only ever touched from the
// goroutine driving the owning Loop.
type kqueuePoller struct {
	kq       int
	fds      map[int]IOEvents
	eventBuf []unix.Kevent_t
	closed   bool
}

func newPoller(maxEvents int) (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &kqueuePoller{
		kq:       kq,
		fds:      make(map[int]IOEvents),
		eventBuf: make([]unix.Kevent_t, maxEvents),
	}, nil
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if events&EventRead != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func (p *kqueuePoller) registerFD(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			return err
		}
	}
	p.fds[fd] = events
	return nil
}

func (p *kqueuePoller) modifyFD(fd int, events IOEvents) error {
	old, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	if removed := old &^ events; removed != 0 {
		if kevents := eventsToKevents(fd, removed, unix.EV_DELETE); len(kevents) > 0 {
			_, _ = unix.Kevent(p.kq, kevents, nil, nil)
		}
	}
	if added := events &^ old; added != 0 {
		if kevents := eventsToKevents(fd, added, unix.EV_ADD|unix.EV_ENABLE); len(kevents) > 0 {
			if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
				return err
			}
		}
	}
	p.fds[fd] = events
	return nil
}

func (p *kqueuePoller) unregisterFD(fd int) error {
	events, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	if kevents := eventsToKevents(fd, events, unix.EV_DELETE); len(kevents) > 0 {
		_, _ = unix.Kevent(p.kq, kevents, nil, nil)
	}
	return nil
}

func (p *kqueuePoller) pollIO(timeout int, handler IOHandler) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeout >= 0 {
		ts = &unix.Timespec{Sec: int64(timeout / 1000), Nsec: int64((timeout % 1000) * 1000000)}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	// Coalesce EVFILT_READ/EVFILT_WRITE entries for the same fd delivered
	// in one batch into a single handler call with a combined mask.
	masks := make(map[int]IOEvents, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		if _, ok := p.fds[fd]; !ok {
			continue
		}
		var m IOEvents
		switch ev.Filter {
		case unix.EVFILT_READ:
			m = EventRead
		case unix.EVFILT_WRITE:
			m = EventWrite
		}
		if ev.Flags&unix.EV_EOF != 0 {
			m |= EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			m |= EventError
		}
		if _, seen := masks[fd]; !seen {
			order = append(order, fd)
		}
		masks[fd] |= m
	}
	for _, fd := range order {
		handler(fd, masks[fd])
	}
	return n, nil
}

func (p *kqueuePoller) close() error {
	p.closed = true
	return unix.Close(p.kq)
}
