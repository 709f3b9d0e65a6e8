package aio

import "time"

// UDPClient is a client-side, non-blocking UDP socket dialed to a single
// remote peer: a DNS resolver or similar one-shot request/response caller
// can still name an explicit destination on Write (overriding the dialed
// peer for that one datagram), but only ever receives datagrams sent
// back from the peer it dialed. It is a distinct type from the
// server-side Datagram (one per outbound request, dialed rather than
// bound-and-shared by many peers), grounded on UDPClient in the original
// handler.py, which also keeps its own _rbuf separate from the
// connection-oriented handlers.
type UDPClient struct {
	loop       *Loop
	fd         int
	remoteAddr string

	rq     recvQueue
	closed bool
}

// NewUDPClient dials a non-blocking UDP socket to remoteAddr and
// registers it with loop for read readiness.
func NewUDPClient(loop *Loop, remoteAddr string) (*UDPClient, error) {
	fd, err := dialUDPClient(remoteAddr)
	if err != nil {
		return nil, err
	}
	c := &UDPClient{loop: loop, fd: fd, remoteAddr: remoteAddr}
	c.rq.loop = loop
	if err := loop.Register(fd, EventRead, c.handleIO); err != nil {
		closeFD(fd)
		return nil, err
	}
	return c, nil
}

// RemoteAddr returns the address this client was dialed to.
func (c *UDPClient) RemoteAddr() string { return c.remoteAddr }

func (c *UDPClient) handleIO(fd int, events IOEvents) {
	if events&EventError != 0 {
		err := getSocketError(fd)
		if err == nil {
			err = &ConnectionClosedError{Reason: "udp client socket error"}
		} else {
			err = wrapSocketError(err)
		}
		c.rq.fail(err)
		c.Close()
		return
	}
	if events&EventRead != 0 {
		c.onReadable()
	}
}

func (c *UDPClient) onReadable() {
	data, from, err := recvfrom(c.fd, maxDatagramSize)
	if err != nil {
		if isAgain(err) {
			return
		}
		c.rq.fail(wrapSocketError(err))
		c.Close()
		return
	}
	c.rq.deliver(packet{data: data, from: from})
}

// Write sends data to serverAddr, which need not match the address the
// client was dialed to.
func (c *UDPClient) Write(data []byte, serverAddr string) error {
	return sendtoAddr(c.fd, data, serverAddr)
}

// Read returns the next (data, fromAddr) pair, parking until one arrives
// or timeout elapses. timeout <= 0 disables the deadline.
func (c *UDPClient) Read(timeout time.Duration) *Future {
	return c.rq.take(timeout, func() { c.Close() })
}

// Close is idempotent; it unregisters and closes the socket and cancels
// any outstanding read.
func (c *UDPClient) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.rq.fail(&ConnectionClosedError{ByAddr: c.remoteAddr, Reason: "closed"})
	_ = c.loop.Unregister(c.fd)
	return closeFD(c.fd)
}
