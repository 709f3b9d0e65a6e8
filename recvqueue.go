package aio

import "time"

// recvQueue is the FIFO-buffer-or-park-a-future handoff shared by every
// packet-oriented socket type (Datagram, UDPClient): a packet that
// arrives with nobody waiting is queued; a packet that arrives while a
// receive is pending resolves it directly, matching the direct hand-off
// invariant used throughout this package's synchronization primitives.
type recvQueue struct {
	loop     *Loop
	buffered []packet
	fut      *Future
	reading  bool
	timer    *Timer
}

// deliver hands p to the parked receiver if one exists, else buffers it.
func (q *recvQueue) deliver(p packet) {
	if q.fut != nil {
		f := q.fut
		q.fut = nil
		q.reading = false
		if q.timer != nil {
			q.loop.CancelTimer(q.timer)
			q.timer = nil
		}
		f.SetResult(p)
		return
	}
	q.buffered = append(q.buffered, p)
}

// fail cancels a parked receiver, if any, with err.
func (q *recvQueue) fail(err error) {
	if q.fut != nil {
		f := q.fut
		q.fut = nil
		q.reading = false
		if q.timer != nil {
			q.loop.CancelTimer(q.timer)
			q.timer = nil
		}
		f.Cancel(err)
	}
}

// take returns the next packet: the buffered head via CallSoon if one is
// waiting, else a parked Future armed with timeout (if positive). onTimeout
// runs before the Future is cancelled, so the caller can close its socket.
func (q *recvQueue) take(timeout time.Duration, onTimeout func()) *Future {
	f := NewFuture(q.loop)
	if len(q.buffered) > 0 {
		p := q.buffered[0]
		q.buffered = q.buffered[1:]
		q.loop.CallSoon(func() { f.SetResult(p) })
		return f
	}
	if q.reading {
		panic(&TypeError{Message: "aio: second reader on packet socket"})
	}
	q.fut = f
	q.reading = true
	if timeout > 0 {
		q.timer = q.loop.CallLater(timeout, func() {
			if q.fut == f {
				q.fut = nil
				q.reading = false
				q.timer = nil
				onTimeout()
				f.Cancel(&TimeoutError{Message: "aio: read timed out"})
			}
		})
	}
	return f
}
