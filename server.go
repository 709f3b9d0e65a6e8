package aio

// TCPServer listens on a bound address and, for each accepted
// connection, invokes HandleConn(conn, addr) — the override point a
// protocol implementation replaces to drive the connection.
type TCPServer struct {
	loop       *Loop
	fd         int
	addr       string
	backlog    int
	closed     bool
	HandleConn func(conn *StreamConn, addr string)
}

// NewTCPServer binds and listens on addr (host:port), registering the
// listening socket for accept readiness. handleConn is invoked once per
// accepted connection; it owns the connection's lifetime from there.
func NewTCPServer(loop *Loop, addr string, backlog int, handleConn func(conn *StreamConn, addr string)) (*TCPServer, error) {
	if backlog <= 0 {
		backlog = 128
	}
	fd, err := bindListen(addr, backlog)
	if err != nil {
		return nil, err
	}
	s := &TCPServer{loop: loop, fd: fd, addr: addr, backlog: backlog, HandleConn: handleConn}
	if err := loop.Register(fd, EventRead, s.handleIO); err != nil {
		closeFD(fd)
		return nil, err
	}
	return s, nil
}

// Addr returns the address this server is bound to.
func (s *TCPServer) Addr() string { return s.addr }

func (s *TCPServer) handleIO(fd int, events IOEvents) {
	if events&EventError != 0 {
		s.loop.logger.Warning().Str("addr", s.addr).Log("aio: listener socket error")
		s.Close()
		return
	}
	// Accept every pending connection now rather than waiting for
	// another readiness notification; edge-triggered backends only
	// fire once per batch of arrivals.
	for {
		connFD, peer, err := acceptConn(s.fd)
		if err != nil {
			if isAgain(err) {
				return
			}
			s.loop.logger.Warning().Str("addr", s.addr).Err(err).Log("aio: accept failed")
			return
		}
		conn, err := NewStreamConn(s.loop, connFD, peer)
		if err != nil {
			closeFD(connFD)
			continue
		}
		if s.HandleConn != nil {
			s.HandleConn(conn, peer)
		}
	}
}

// Close stops accepting new connections. Already-accepted connections
// are unaffected.
func (s *TCPServer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.loop.Unregister(s.fd)
	return closeFD(s.fd)
}

// UDPServer listens on a single bound datagram socket and, for every
// inbound packet, invokes HandleDatagram(dgram, addr) — the override
// point a protocol implementation replaces to react to it. dgram is the
// server's one shared Datagram; addr is the sender of the packet that
// triggered this call, matching the spec's "peer address is the last
// received remote" shape for server-side datagram sockets. HandleDatagram
// can still call dgram.ReadPackage to pull whatever this arrival (or an
// earlier one) left buffered, and dgram.WritePackage(reply, addr) to
// respond to the sender directly.
type UDPServer struct {
	loop           *Loop
	fd             int
	addr           string
	closed         bool
	dgram          *Datagram
	HandleDatagram func(dgram *Datagram, addr string)
}

// NewUDPServer binds a non-blocking UDP socket to addr. handleDatagram
// is invoked once per inbound packet, after it's been recorded in the
// shared Datagram's buffer/pending-future state.
func NewUDPServer(loop *Loop, addr string, handleDatagram func(dgram *Datagram, addr string)) (*UDPServer, error) {
	fd, err := bindDatagram(addr)
	if err != nil {
		return nil, err
	}
	s := &UDPServer{loop: loop, fd: fd, addr: addr, HandleDatagram: handleDatagram}
	s.dgram = &Datagram{loop: loop, fd: fd, addr: addr, sendto: func(data []byte, to string) error {
		return sendtoAddr(fd, data, to)
	}}
	s.dgram.rq.loop = loop
	if err := loop.Register(fd, EventRead, s.handleIO); err != nil {
		closeFD(fd)
		return nil, err
	}
	return s, nil
}

// Dgram returns the server's shared Datagram, for direct ReadPackage/
// WritePackage use outside of HandleDatagram.
func (s *UDPServer) Dgram() *Datagram { return s.dgram }

// Addr returns the address this server is bound to.
func (s *UDPServer) Addr() string { return s.addr }

func (s *UDPServer) handleIO(fd int, events IOEvents) {
	if events&EventError != 0 {
		err := getSocketError(fd)
		if err == nil {
			err = &ConnectionClosedError{Reason: "datagram server socket error"}
		} else {
			err = wrapSocketError(err)
		}
		s.dgram.failPending(err)
		s.Close()
		return
	}
	if events&EventRead == 0 {
		return
	}
	for {
		data, from, err := recvfrom(fd, maxDatagramSize)
		if err != nil {
			if isAgain(err) {
				return
			}
			s.dgram.failPending(wrapSocketError(err))
			s.Close()
			return
		}
		s.dgram.onDatagram(data, from)
		if s.HandleDatagram != nil {
			s.HandleDatagram(s.dgram, from)
		}
	}
}

// Close stops the server and unregisters its socket.
func (s *UDPServer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dgram.Close()
}
