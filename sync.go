package aio

import "time"

// Lock is a strict-FIFO mutex for coroutines, not OS threads. Reentrant
// acquisition is not supported: a coroutine that holds the lock and
// calls Acquire again deadlocks, same as the lock it's modeled on.
type Lock struct {
	loop    *Loop
	locked  bool
	waiters []*Future
}

// NewLock returns an unlocked Lock bound to loop.
func NewLock(loop *Loop) *Lock {
	return &Lock{loop: loop}
}

// Acquire returns a future that resolves once the lock is held. If the
// lock is free, the future resolves on the next ready-queue drain
// (never inline); otherwise it joins the FIFO of waiters and resolves
// the instant Release hands ownership to it.
func (l *Lock) Acquire() *Future {
	f := NewFuture(l.loop)
	if !l.locked {
		l.locked = true
		l.loop.CallSoon(func() { f.SetResult(true) })
		return f
	}
	l.waiters = append(l.waiters, f)
	return f
}

// Release hands the lock to the longest-waiting acquirer, if any,
// transferring ownership directly rather than clearing locked first —
// nobody else can observe the lock as free in between. If nobody is
// waiting, the lock becomes free. Returns a future resolved on the next
// drain, matching the shape of Acquire.
func (l *Lock) Release() *Future {
	f := NewFuture(l.loop)
	l.loop.CallSoon(func() { f.SetResult(true) })
	if len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		next.SetResult(true)
		return f
	}
	l.locked = false
	return f
}

// Locked reports whether the lock is currently held.
func (l *Lock) Locked() bool { return l.locked }

// putter is a pending Queue.Put call: the item it wants to enqueue and a
// timer that fails it on timeout. A Get that wakes the putter cancels
// that timer.
type putter struct {
	fut   *Future
	item  any
	timer *Timer
}

type getter struct {
	fut   *Future
	timer *Timer
}

// Queue is a bounded FIFO of items, handed off between coroutines via
// futures. At any time either items is empty or getWaiters is empty,
// and if items is full either putWaiters is empty or there is no room —
// a Put that wakes a waiting Get, or a Get that wakes a waiting Put,
// moves the item directly, never through the items slice.
type Queue struct {
	loop       *Loop
	maxsize    int
	items      []any
	getWaiters []*getter
	putWaiters []*putter
}

// NewQueue returns an empty Queue. maxsize <= 0 means unbounded.
func NewQueue(loop *Loop, maxsize int) *Queue {
	return &Queue{loop: loop, maxsize: maxsize}
}

// Full reports whether the queue has reached its capacity. An
// unbounded queue is never full.
func (q *Queue) Full() bool {
	return q.maxsize > 0 && len(q.items) >= q.maxsize
}

// Empty reports whether the queue currently holds no items.
func (q *Queue) Empty() bool { return len(q.items) == 0 }

// Qsize returns the number of items currently queued.
func (q *Queue) Qsize() int { return len(q.items) }

// Put enqueues item, returning a future that resolves once it is
// accepted. If a getter is already waiting, the item is handed to it
// directly. Else if there's room, it's appended. Else, if block is
// false, the future fails immediately with *FullError; if block is
// true, the put joins a FIFO of waiters, optionally bounded by timeout
// (<= 0 disables it), and fails with *FullError if the timeout elapses
// first.
func (q *Queue) Put(item any, block bool, timeout time.Duration) *Future {
	f := NewFuture(q.loop)

	if len(q.getWaiters) > 0 {
		g := q.getWaiters[0]
		q.getWaiters = q.getWaiters[1:]
		if g.timer != nil {
			q.loop.CancelTimer(g.timer)
		}
		g.fut.SetResult(item)
		q.loop.CallSoon(func() { f.SetResult(nil) })
		return f
	}

	if !q.Full() {
		q.items = append(q.items, item)
		q.loop.CallSoon(func() { f.SetResult(nil) })
		return f
	}

	if !block {
		return failedFuture(ErrFull)
	}

	p := &putter{fut: f, item: item}
	if timeout > 0 {
		p.timer = q.loop.CallLater(timeout, func() {
			q.removePutter(p)
			f.Cancel(ErrFull)
		})
	}
	q.putWaiters = append(q.putWaiters, p)
	return f
}

// Get dequeues the next item, returning a future that resolves with it.
// If items already holds something, it's popped immediately — and if a
// putter is waiting, its item moves straight into the now-vacated slot.
// Otherwise, if block is false, the future fails immediately with
// *EmptyError; if block is true, the get joins a FIFO of waiters,
// optionally bounded by timeout, and fails with *EmptyError if the
// timeout elapses first.
func (q *Queue) Get(block bool, timeout time.Duration) *Future {
	f := NewFuture(q.loop)

	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.loop.CallSoon(func() { f.SetResult(item) })
		if len(q.putWaiters) > 0 {
			p := q.putWaiters[0]
			q.putWaiters = q.putWaiters[1:]
			if p.timer != nil {
				q.loop.CancelTimer(p.timer)
			}
			q.items = append(q.items, p.item)
			p.fut.SetResult(nil)
		}
		return f
	}

	if !block {
		return failedFuture(ErrEmpty)
	}

	g := &getter{fut: f}
	if timeout > 0 {
		g.timer = q.loop.CallLater(timeout, func() {
			q.removeGetter(g)
			f.Cancel(ErrEmpty)
		})
	}
	q.getWaiters = append(q.getWaiters, g)
	return f
}

func (q *Queue) removePutter(p *putter) {
	for i, w := range q.putWaiters {
		if w == p {
			q.putWaiters = append(q.putWaiters[:i], q.putWaiters[i+1:]...)
			return
		}
	}
}

func (q *Queue) removeGetter(g *getter) {
	for i, w := range q.getWaiters {
		if w == g {
			q.getWaiters = append(q.getWaiters[:i], q.getWaiters[i+1:]...)
			return
		}
	}
}
