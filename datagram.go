package aio

import "time"

const maxDatagramSize = 65535

// packet is a single buffered datagram: the payload and the address it
// arrived from.
type packet struct {
	data []byte
	from string
}

// Datagram is a non-blocking, message-oriented socket. Received messages
// that arrive with nobody waiting are queued in a FIFO; ReadPackage
// either serves the head of that queue (via CallSoon, never inline) or
// parks a receive future.
type Datagram struct {
	loop *Loop
	fd   int
	addr string

	rq     recvQueue
	closed bool

	sendto func(data []byte, addr string) error
}

// NewDatagram wraps an already-bound, non-blocking datagram socket fd.
// sendto performs the platform sendto() call; it is injected so the type
// stays portable across the address-family differences between UDP
// clients, UDP servers, and Unix datagram sockets.
func NewDatagram(loop *Loop, fd int, addr string, sendto func([]byte, string) error) (*Datagram, error) {
	d := &Datagram{loop: loop, fd: fd, addr: addr, sendto: sendto}
	d.rq.loop = loop
	if err := loop.Register(fd, EventRead, d.handleIO); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Datagram) handleIO(fd int, events IOEvents) {
	if events&EventError != 0 {
		err := getSocketError(fd)
		if err == nil {
			err = &ConnectionClosedError{Reason: "datagram socket error"}
		} else {
			err = wrapSocketError(err)
		}
		d.failPending(err)
		d.Close()
		return
	}
	if events&EventRead != 0 {
		d.onReadable()
	}
}

// onDatagram is invoked by the platform-specific receive loop (see the
// recvfrom wiring in server.go) each time a full datagram is available.
func (d *Datagram) onDatagram(data []byte, from string) {
	d.rq.deliver(packet{data: data, from: from})
}

// onReadable exists so Datagram can, like StreamConn, be driven purely
// off Loop.Register's readiness callback when a caller constructs it
// directly over a raw fd rather than through a server's accept path; the
// actual recvfrom syscall is platform-specific and lives in socket_unix.go.
func (d *Datagram) onReadable() {
	data, from, err := recvfrom(d.fd, maxDatagramSize)
	if err != nil {
		if isAgain(err) {
			return
		}
		d.failPending(wrapSocketError(err))
		d.Close()
		return
	}
	d.onDatagram(data, from)
}

func (d *Datagram) failPending(err error) {
	d.rq.fail(err)
}

// ReadPackage returns the next (data, fromAddr) pair. A previously
// buffered message is delivered via CallSoon so a caller never observes
// synchronous re-entry, even when data was already waiting.
func (d *Datagram) ReadPackage(timeout time.Duration) *Future {
	return d.rq.take(timeout, func() { d.Close() })
}

// WritePackage sends data to addr via a direct, non-blocking sendto.
func (d *Datagram) WritePackage(data []byte, addr string) error {
	return d.sendto(data, addr)
}

// Close is idempotent; it unregisters and closes the socket and cancels
// any outstanding receive future.
func (d *Datagram) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.failPending(&ConnectionClosedError{ByAddr: d.addr, Reason: "closed"})
	_ = d.loop.Unregister(d.fd)
	return closeFD(d.fd)
}
