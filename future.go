package aio

// futureState is the lifecycle of a Future. CANCELLED is not tracked
// separately from FINISHED: a cancelled future is simply a finished one
// whose error is (or wraps) a *CancelledError.
type futureState uint8

const (
	futurePending futureState = iota
	futureFinished
)

// Continuation is the single callback a Future may carry. It is invoked
// at most once, either synchronously inside Attach (if the future is
// already finished) or from whatever completes the future.
type Continuation func(*Future)

// Future is a one-shot completion cell carrying either a value or an
// error, with at most one registered continuation. It is not safe for
// concurrent use from multiple goroutines without external synchronization
// beyond the loop boundary: in normal operation all Future methods are
// called from the goroutine driving the owning Loop.
type Future struct {
	state   futureState
	value   any
	err     error
	cont    Continuation
	loop    *Loop
	onError func(error) // diagnostic sink invoked if err is unhandled
}

// NewFuture returns a pending Future bound to loop. loop may be nil for
// futures that never need to post continuations via CallSoon (their
// attach/complete always happens inline). A future created with a
// non-nil loop reports an unhandled error to loop's logger if it
// finishes with one while no continuation is attached; a later Attach
// still runs, but the error has already been logged.
func NewFuture(loop *Loop) *Future {
	f := &Future{loop: loop}
	if loop != nil {
		f.setDiagnosticSink(func(err error) { logUnhandledError(loop.logger, err) })
	}
	return f
}

// Done reports whether the future has reached its terminal state.
func (f *Future) Done() bool {
	return f.state == futureFinished
}

// Result returns the future's value. Only meaningful once Done reports
// true and Err returns nil.
func (f *Future) Result() any {
	return f.value
}

// Err returns the future's error, or nil if it completed with a value (or
// has not completed yet).
func (f *Future) Err() error {
	return f.err
}

// SetResult transitions a pending future to finished carrying v. A no-op
// if the future is already finished.
func (f *Future) SetResult(v any) {
	if f.state == futureFinished {
		return
	}
	f.state = futureFinished
	f.value = v
	f.fire()
}

// SetError transitions a pending future to finished carrying err. A no-op
// if the future is already finished.
func (f *Future) SetError(err error) {
	if f.state == futureFinished {
		return
	}
	f.state = futureFinished
	f.err = err
	f.fire()
}

// Cancel transitions a pending future to finished with a *CancelledError
// wrapping cause (or ErrCancelled, if cause is nil). A no-op if the
// future is already finished.
func (f *Future) Cancel(cause error) {
	if f.state == futureFinished {
		return
	}
	if cause == nil {
		f.SetError(ErrCancelled)
		return
	}
	f.SetError(&CancelledError{Cause: cause})
}

// Attach registers cont as the future's single continuation. If the
// future is already finished, cont is invoked synchronously — this is
// required so that completions racing ahead of Attach don't deadlock a
// coroutine driver waiting to be resumed.
//
// Attach must only be called once per future; calling it a second time
// overwrites the previous continuation, which is almost always a
// programming error in caller code (attaching twice to the same future is
// the "second waiter" condition the stream/lock/queue primitives forbid).
func (f *Future) Attach(cont Continuation) {
	if f.state == futureFinished {
		cont(f)
		return
	}
	f.cont = cont
}

func (f *Future) fire() {
	cont := f.cont
	f.cont = nil
	if cont == nil {
		if f.err != nil && f.onError != nil {
			f.onError(f.err)
		}
		return
	}
	cont(f)
}

// setDiagnosticSink installs the callback invoked if the future finishes
// with an error while no continuation is attached to observe it.
func (f *Future) setDiagnosticSink(fn func(error)) {
	f.onError = fn
}

// resolvedFuture returns an already-finished future carrying v, suitable
// for call sites that need to return a Future but already have the
// answer.
func resolvedFuture(v any) *Future {
	f := &Future{state: futureFinished, value: v}
	return f
}

// failedFuture returns an already-finished future carrying err.
func failedFuture(err error) *Future {
	f := &Future{state: futureFinished, err: err}
	return f
}
