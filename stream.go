package aio

import (
	"fmt"
	"time"
)

const maxRecvChunk = 65535

// StreamConn is a non-blocking, buffered byte stream built on a raw
// socket fd registered with a Loop: it implements ReadUntil/ReadExact/
// ReadForever/Write on top of the fd's readiness events, using a
// prefix-coalescing chunkBuffer on both the read and write sides so
// delimiter search and vectored-free sending never need to flatten a
// buffer eagerly.
type StreamConn struct {
	loop *Loop
	fd   int
	addr string

	rbuf chunkBuffer
	wbuf chunkBuffer

	rfut    *Future
	wfut    *Future
	reading bool
	writing bool

	closed bool
}

// NewStreamConn wraps an already-connected, non-blocking socket fd and
// registers it with loop for read readiness.
func NewStreamConn(loop *Loop, fd int, addr string) (*StreamConn, error) {
	c := &StreamConn{loop: loop, fd: fd, addr: addr}
	if err := loop.Register(fd, EventRead, c.handleIO); err != nil {
		return nil, err
	}
	return c, nil
}

// Addr returns the peer address this connection was constructed with.
func (c *StreamConn) Addr() string { return c.addr }

// Closed reports whether Close has already run.
func (c *StreamConn) Closed() bool { return c.closed }

func (c *StreamConn) handleIO(fd int, events IOEvents) {
	if events&EventError != 0 {
		c.onError()
		return
	}
	if events&(EventRead|EventHangup) != 0 {
		c.onRead()
	}
	if !c.closed && events&EventWrite != 0 {
		c.onWrite()
	}
}

// onRead implements the spec's READ handler contract: a single recv,
// absorbing EAGAIN/EWOULDBLOCK, handing zero bytes through to a waiting
// reader (so the read_* wrapper can itself decide to raise
// ConnectionClosed) rather than closing out from under it.
func (c *StreamConn) onRead() {
	if c.closed {
		return
	}
	buf := make([]byte, maxRecvChunk)
	n, err := readFD(c.fd, buf)
	if err != nil {
		if isAgain(err) {
			return
		}
		c.failPending(wrapSocketError(err))
		c.Close()
		return
	}
	data := buf[:n]
	if c.rfut != nil {
		fut := c.rfut
		c.rfut = nil
		c.reading = false
		fut.SetResult(data)
		return
	}
	if n == 0 {
		c.Close()
		return
	}
	c.rbuf.append(data)
}

// onWrite implements the spec's WRITE handler contract: repeated sends,
// each targeting a single contiguous slice thanks to mergePrefix, until
// EAGAIN or the buffer drains.
func (c *StreamConn) onWrite() {
	sent := 0
	c.wbuf.mergePrefix(maxRecvChunk)
	for !c.wbuf.empty() {
		head := c.wbuf.chunks[0]
		n, err := writeFD(c.fd, head)
		if err != nil {
			if isAgain(err) {
				break
			}
			c.failPending(wrapSocketError(err))
			c.Close()
			return
		}
		if n == 0 {
			break
		}
		c.wbuf.mergePrefix(n)
		c.wbuf.popFront()
		sent += n
		c.wbuf.mergePrefix(maxRecvChunk)
	}
	if c.wbuf.empty() {
		c.setWriteInterest(false)
		if c.wfut != nil {
			fut := c.wfut
			c.wfut = nil
			c.writing = false
			fut.SetResult(sent)
		}
	}
}

func (c *StreamConn) onError() {
	err := getSocketError(c.fd)
	if err == nil {
		err = fmt.Errorf("aio: socket error on %s", c.addr)
	} else {
		err = wrapSocketError(err)
	}
	c.failPending(err)
	c.Close()
}

func (c *StreamConn) failPending(err error) {
	if c.rfut != nil {
		f := c.rfut
		c.rfut = nil
		c.reading = false
		f.Cancel(err)
	}
	if c.wfut != nil {
		f := c.wfut
		c.wfut = nil
		c.writing = false
		f.Cancel(err)
	}
}

func (c *StreamConn) cancelRead(err error) {
	if c.rfut != nil {
		f := c.rfut
		c.rfut = nil
		c.reading = false
		f.Cancel(err)
	}
}

func (c *StreamConn) readRaw() *Future {
	if c.reading {
		panic(&TypeError{Message: "aio: second reader on stream connection"})
	}
	if c.closed {
		return failedFuture(&ConnectionClosedError{ByAddr: c.addr})
	}
	f := NewFuture(c.loop)
	c.rfut = f
	c.reading = true
	return f
}

func (c *StreamConn) setWriteInterest(want bool) {
	if c.closed {
		return
	}
	events := EventRead
	if want {
		events |= EventWrite
	}
	_ = c.loop.Register(c.fd, events, c.handleIO)
}

// ReadUntil returns the bytes up to and including the first occurrence of
// delim, or fails with *ConnectionClosedError{Reason: "Entity Too Large"}
// if the coalesced head reaches maxBytes first, or *ConnectionClosedError
// on EOF before a match.
func (c *StreamConn) ReadUntil(delim []byte, maxBytes int) *Future {
	if maxBytes <= 0 {
		maxBytes = maxRecvChunk
	}
	return Spawn(c.loop, func(yield Yield) (any, error) {
		for {
			c.rbuf.mergePrefix(maxBytes)
			if off := c.rbuf.indexDelim(delim); off >= 0 {
				return c.rbuf.takeFront(off), nil
			}
			if c.rbuf.peekHeadLen() >= maxBytes {
				c.Close()
				return nil, newEntityTooLargeError(c.addr)
			}
			raw := c.readRaw()
			if err := yield(raw); err != nil {
				c.Close()
				return nil, err
			}
			data := raw.Result().([]byte)
			if len(data) == 0 {
				c.Close()
				return nil, &ConnectionClosedError{ByAddr: c.addr}
			}
			c.rbuf.append(data)
		}
	})
}

// ReadExact returns exactly n bytes, reading from the OS as needed, and
// fails with *TimeoutError (closing the connection) if timeout elapses
// first, or *ConnectionClosedError on EOF before n bytes arrive. timeout
// <= 0 disables the deadline.
func (c *StreamConn) ReadExact(n int, timeout time.Duration) *Future {
	return Spawn(c.loop, func(yield Yield) (any, error) {
		if c.rbuf.size >= n {
			return c.rbuf.takeFront(n), nil
		}
		var timer *Timer
		if timeout > 0 {
			timer = c.loop.CallLater(timeout, func() {
				c.cancelRead(&TimeoutError{Message: "aio: read_exact timed out"})
			})
		}
		for c.rbuf.size < n {
			raw := c.readRaw()
			if err := yield(raw); err != nil {
				if timer != nil {
					c.loop.CancelTimer(timer)
				}
				c.Close()
				return nil, err
			}
			data := raw.Result().([]byte)
			if len(data) == 0 {
				if timer != nil {
					c.loop.CancelTimer(timer)
				}
				c.Close()
				return nil, &ConnectionClosedError{ByAddr: c.addr}
			}
			c.rbuf.append(data)
		}
		if timer != nil {
			c.loop.CancelTimer(timer)
		}
		return c.rbuf.takeFront(n), nil
	})
}

// ReadForever returns the next available chunk: the buffer's coalesced
// head if non-empty, else whatever the OS next delivers. Fails with
// *ConnectionClosedError on EOF, *TimeoutError (closing the connection)
// if timeout elapses first.
func (c *StreamConn) ReadForever(timeout time.Duration) *Future {
	return Spawn(c.loop, func(yield Yield) (any, error) {
		if c.rbuf.size > 0 {
			c.rbuf.mergePrefix(c.rbuf.size)
			return c.rbuf.popFront(), nil
		}
		raw := c.readRaw()
		var timer *Timer
		if timeout > 0 {
			timer = c.loop.CallLater(timeout, func() {
				c.cancelRead(&TimeoutError{Message: "aio: read_forever timed out"})
			})
		}
		if err := yield(raw); err != nil {
			if timer != nil {
				c.loop.CancelTimer(timer)
			}
			c.Close()
			return nil, err
		}
		if timer != nil {
			c.loop.CancelTimer(timer)
		}
		data := raw.Result().([]byte)
		if len(data) == 0 {
			c.Close()
			return nil, &ConnectionClosedError{ByAddr: c.addr}
		}
		return data, nil
	})
}

// Write appends data to the write buffer, arms write-readiness interest,
// and returns a Future resolved with the total bytes sent once the
// buffer fully drains. Writing to a closed connection is a programming
// error and panics with *TypeError.
func (c *StreamConn) Write(data []byte) *Future {
	if c.writing {
		panic(&TypeError{Message: "aio: second writer on stream connection"})
	}
	if c.closed {
		panic(&TypeError{Message: "aio: write on closed stream connection"})
	}
	f := NewFuture(c.loop)
	c.wbuf.append(data)
	c.wfut = f
	c.writing = true
	c.setWriteInterest(true)
	return f
}

// Close unregisters and closes the socket, clears both buffers, and
// cancels any outstanding reader/writer future with a connection error.
// Idempotent.
func (c *StreamConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.failPending(&ConnectionClosedError{ByAddr: c.addr, Reason: "closed"})
	c.rbuf = chunkBuffer{}
	c.wbuf = chunkBuffer{}
	_ = c.loop.Unregister(c.fd)
	return closeFD(c.fd)
}
