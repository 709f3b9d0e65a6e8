package aio

import (
	"iter"
	"time"
)

// CoroutineFunc is the body of a coroutine: a plain Go function given a
// Yield capability, which it calls to suspend until a Future completes.
// It returns the coroutine's final value, or an error.
//
// Go has no native generators, so the driver below is built on iter.Pull:
// the coroutine body runs on its own goroutine, parked at each Yield call
// until the driving Loop goroutine resumes it by pulling the next value.
type CoroutineFunc func(yield Yield) (any, error)

// Yield suspends the calling coroutine until fut completes, then returns
// fut.Err() (nil if fut completed with a value). The coroutine reads
// fut.Result() itself once Yield returns nil — the future IS the
// resumption value, there is nothing further to hand back across the
// suspension boundary.
type Yield func(fut *Future) error

// trampolineDepthLimit bounds how many times step may re-enter itself
// synchronously (continuation fired inline because its future was
// already finished at Attach time) before it posts the rest of the chain
// onto the ready queue instead, preventing unbounded native stack growth
// on a coroutine that yields a long run of pre-completed futures.
const trampolineDepthLimit = 64

// Spawn wraps f so that invoking it drives f on loop and returns a
// wrapper Future that completes with f's final value or error.
//
// step(task, W, prev) in the spec corresponds here to: next() pulls the
// coroutine goroutine forward past its last Yield call (prev is implicit
// — the coroutine already read the previous future's result itself
// before yielding again), and the driver's only job is to attach itself
// as the continuation of whatever future comes out.
func Spawn(loop *Loop, f CoroutineFunc) *Future {
	w := NewFuture(loop)

	next, stop := iter.Pull(func(yield func(*Future) bool) {
		y := func(fut *Future) error {
			if fut == nil {
				panic(&TypeError{Message: "aio: coroutine yielded a nil future"})
			}
			if !yield(fut) {
				return ErrCancelled
			}
			return fut.Err()
		}
		v, err := f(y)
		if err != nil {
			w.SetError(err)
		} else {
			w.SetResult(v)
		}
	})

	var step func(depth int)
	step = func(depth int) {
		fut, ok := next()
		if !ok {
			stop()
			return
		}
		inline := true
		fut.Attach(func(*Future) {
			if !inline {
				step(0)
				return
			}
			if depth < trampolineDepthLimit {
				step(depth + 1)
				return
			}
			loop.CallSoon(func() { step(0) })
		})
		inline = false
	}

	loop.CallSoon(func() { step(0) })
	return w
}

// Sleep returns a Future that resolves after d. d <= 0 yields control to
// the loop (via CallSoon) without an actual delay, so a coroutine that
// loops calling Sleep(loop, 0) N times completes in exactly N scheduler
// iterations.
func Sleep(loop *Loop, d time.Duration) *Future {
	f := NewFuture(loop)
	if d <= 0 {
		loop.CallSoon(func() { f.SetResult(nil) })
		return f
	}
	loop.CallLater(d, func() { f.SetResult(nil) })
	return f
}

// armTimeout schedules fut to be cancelled with a *TimeoutError after d,
// matching the spec's "call_later(timeout, lambda: fut.cancel(TimeoutError))"
// pattern. It returns a disarm function the caller must invoke on fut's
// success path, before setting fut's result, to cancel the backing timer.
//
// This is deliberately not built on Future.Attach: a future carries at
// most one continuation, and that slot belongs to whatever is actually
// consuming the result (the coroutine driver, or a direct caller) — the
// timeout's own cleanup must happen inline, in the code that already
// holds both the future and the timer.
func armTimeout(loop *Loop, fut *Future, d time.Duration) (disarm func()) {
	if d <= 0 {
		return func() {}
	}
	timer := loop.CallLater(d, func() {
		fut.Cancel(&TimeoutError{Message: "aio: operation timed out"})
	})
	return func() { loop.CancelTimer(timer) }
}
