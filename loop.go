package aio

import (
	"context"
	"sync"
	"time"
)

// fdEntry is what the Loop's fd table maps a registered file descriptor
// to: its current interest mask and the handler invoked on readiness.
type fdEntry struct {
	events  IOEvents
	handler IOHandler
}

// Loop is a single-threaded, cooperative event loop: one goroutine calls
// Run and from then on owns the ready queue, the timer heap and the fd
// table until Stop is called or the Run context is cancelled. CallSoon,
// Register, Unregister and Stop may be called from any goroutine; the
// thin submitMu mutex is the only synchronization in the whole type, and
// it exists solely to guard the boundary between "any goroutine" and "the
// loop goroutine", never loop-internal dispatch.
type Loop struct {
	logger *Logger

	submitMu  sync.Mutex
	ready     []func()
	fds       map[int]fdEntry
	timers    *timerQueue
	state     LoopState
	pollTO    time.Duration
	maxEvents int

	poller poller

	wakeReadFD  int
	wakeWriteFD int
	wakePending bool

	stopped bool
}

// New constructs a Loop with its own readiness backend. The returned Loop
// is not started; call Run to drive it.
func New(opts ...Option) (*Loop, error) {
	cfg := resolveOptions(opts)

	p, err := newPoller(cfg.maxEvents)
	if err != nil {
		return nil, err
	}

	readFD, writeFD, err := createWakeFD()
	if err != nil {
		_ = p.close()
		return nil, err
	}

	l := &Loop{
		logger:      cfg.logger,
		fds:         make(map[int]fdEntry),
		timers:      newTimerQueue(cfg.timerCompact),
		state:       StateAwake,
		pollTO:      cfg.pollTimeout,
		maxEvents:   cfg.maxEvents,
		poller:      p,
		wakeReadFD:  readFD,
		wakeWriteFD: writeFD,
	}

	if err := l.poller.registerFD(readFD, EventRead); err != nil {
		_ = p.close()
		return nil, err
	}

	return l, nil
}

// Logger returns the logger the Loop uses for diagnostics.
func (l *Loop) Logger() *Logger { return l.logger }

// State returns the Loop's current lifecycle state.
func (l *Loop) State() LoopState { return l.state }

// CallSoon appends cb to the FIFO ready queue. Safe to call from any
// goroutine; if called from outside the loop goroutine while the loop is
// blocked in PollIO, it wakes the loop.
func (l *Loop) CallSoon(cb func()) {
	l.submitMu.Lock()
	accept := l.state.CanAcceptWork()
	if accept {
		l.ready = append(l.ready, cb)
	}
	needWake := accept && l.state == StateSleeping && !l.wakePending
	if needWake {
		l.wakePending = true
	}
	l.submitMu.Unlock()
	if needWake {
		_ = writeWake(l.wakeWriteFD)
	}
}

// CallLater schedules cb to run after delay and returns the Timer so it
// can be cancelled with CancelTimer.
func (l *Loop) CallLater(delay time.Duration, cb func()) *Timer {
	return l.timers.schedule(time.Now().Add(delay), cb)
}

// CancelTimer flags t cancelled; an O(1) operation that does not remove
// t from the heap immediately (see timer.go for the compaction policy).
func (l *Loop) CancelTimer(t *Timer) {
	l.timers.cancel(t)
}

// AddFuture schedules cb(fut) on the ready queue once fut completes,
// never inline — even if fut is already done, the callback is posted via
// CallSoon so callers never observe synchronous re-entry.
func (l *Loop) AddFuture(fut *Future, cb func(*Future)) {
	fut.Attach(func(f *Future) {
		l.CallSoon(func() { cb(f) })
	})
}

// Register inserts or overwrites the (fd, mask, handler) entry and wires
// it into the readiness backend, calling ModifyFD instead of RegisterFD
// when the fd is already known and only its mask changed.
func (l *Loop) Register(fd int, events IOEvents, handler IOHandler) error {
	if _, ok := l.fds[fd]; ok {
		if err := l.poller.modifyFD(fd, events); err != nil {
			return err
		}
	} else {
		if err := setNonblock(fd); err != nil {
			return err
		}
		if err := l.poller.registerFD(fd, events); err != nil {
			return err
		}
	}
	l.fds[fd] = fdEntry{events: events, handler: handler}
	return nil
}

// Unregister removes fd from the table and tells the backend, tolerating
// an fd that is already gone.
func (l *Loop) Unregister(fd int) error {
	if _, ok := l.fds[fd]; !ok {
		return nil
	}
	delete(l.fds, fd)
	if err := l.poller.unregisterFD(fd); err != nil && err != ErrFDNotRegistered {
		return err
	}
	return nil
}

// Stop terminates the loop at the next opportunity: the in-flight Run
// call returns once its current iteration completes. Safe to call from
// any goroutine, any number of times.
func (l *Loop) Stop() {
	l.submitMu.Lock()
	already := l.stopped
	l.stopped = true
	needWake := !already && l.state == StateSleeping
	l.submitMu.Unlock()
	if needWake {
		_ = writeWake(l.wakeWriteFD)
	}
}

// Run drives the loop until Stop is called or ctx is cancelled, returning
// ctx.Err() in the latter case and nil otherwise. Run is not reentrant:
// call it from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.state = StateRunning
	defer func() {
		l.state = StateTerminated
		l.close()
	}()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			l.Stop()
		}()
	}

	for {
		l.submitMu.Lock()
		stop := l.stopped
		l.submitMu.Unlock()
		if stop {
			l.state = StateTerminating
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		}

		l.drainReady()
		l.runTimers()

		l.submitMu.Lock()
		l.state = StateSleeping
		l.submitMu.Unlock()
		timeout := l.calculateTimeout()
		n, err := l.poller.pollIO(timeout, l.dispatchIO)
		l.submitMu.Lock()
		l.state = StateRunning
		l.submitMu.Unlock()
		if err != nil {
			l.logger.Warning().Err(err).Log("poll error")
			continue
		}
		_ = n
	}
}

// drainReady executes every callback enqueued before this call, matching
// the "new callbacks enqueued during the drain wait for the next
// iteration" ordering guarantee.
func (l *Loop) drainReady() {
	l.submitMu.Lock()
	batch := l.ready
	l.ready = nil
	l.submitMu.Unlock()
	for _, cb := range batch {
		l.safeExecute(cb)
	}
}

// runTimers moves the callbacks of expired timers onto the ready queue,
// where they run as ordinary ready callbacks on the next drain.
func (l *Loop) runTimers() {
	due := l.timers.dueBefore(time.Now())
	if len(due) == 0 {
		return
	}
	l.submitMu.Lock()
	for _, t := range due {
		l.ready = append(l.ready, t.callback)
	}
	l.submitMu.Unlock()
}

func (l *Loop) calculateTimeout() int {
	l.submitMu.Lock()
	hasReady := len(l.ready) > 0
	l.submitMu.Unlock()
	if hasReady {
		return 0
	}
	if deadline, ok := l.timers.nextDeadline(); ok {
		d := time.Until(deadline)
		if d <= 0 {
			return 0
		}
		if d > l.pollTO {
			d = l.pollTO
		}
		return int(d / time.Millisecond)
	}
	return int(l.pollTO / time.Millisecond)
}

func (l *Loop) dispatchIO(fd int, events IOEvents) {
	if fd == l.wakeReadFD {
		l.submitMu.Lock()
		l.wakePending = false
		l.submitMu.Unlock()
		drainWake(l.wakeReadFD)
		return
	}
	entry, ok := l.fds[fd]
	if !ok || entry.handler == nil {
		return
	}
	entry.handler(fd, events)
}

// safeExecute runs cb, logging (not propagating) any panic so a single
// misbehaving callback never takes down the loop.
func (l *Loop) safeExecute(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().Interface("panic", r).Log("callback panic recovered")
		}
	}()
	cb()
}

func (l *Loop) close() {
	for fd := range l.fds {
		_ = l.poller.unregisterFD(fd)
	}
	l.fds = nil
	_ = l.poller.close()
	if l.wakeWriteFD != l.wakeReadFD {
		_ = closeFD(l.wakeWriteFD)
	}
	_ = closeFD(l.wakeReadFD)
}
