// Package aio implements a single-threaded, cooperative asynchronous I/O
// runtime: an event loop, a future/promise completion primitive, a coroutine
// driver built on Go's iterator support, readiness-driven stream and
// datagram sockets, and future-based synchronization primitives (Lock,
// Queue).
//
// # Architecture
//
// A [Loop] owns a FIFO ready queue, a min-heap of timers, and a platform
// readiness backend (epoll on Linux, kqueue on Darwin/BSD). User code is
// written as coroutines ([CoroutineFunc]) that yield [*Future] values; the
// driver in coroutine.go resumes each coroutine with either the yielded
// future's result or its error, advancing it until it returns.
//
// # Platform support
//
// I/O readiness is implemented using platform-native mechanisms:
//   - Linux: epoll
//   - Darwin/BSD: kqueue
//
// # Thread safety
//
// [Loop.CallSoon], [Loop.Register], [Loop.Unregister] and [Loop.Stop] are
// safe to call from any goroutine; everything else — future resolution,
// coroutine steps, I/O handler invocation — runs exclusively on the
// goroutine executing [Loop.Run]. There is no locking inside the ready
// queue drain, the timer heap, or the fd table: the single-threaded
// cooperative model is the reason none is required.
package aio
