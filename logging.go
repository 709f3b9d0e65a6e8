package aio

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the logger type threaded through the runtime. It is a type
// alias over logiface's generic logger, specialised to stumpy's JSON event
// so the runtime doesn't need to carry a type parameter of its own.
type Logger = logiface.Logger[*stumpy.Event]

// NewDefaultLogger builds the runtime's default logger: structured JSON on
// stderr via stumpy, logiface's reference writer implementation.
func NewDefaultLogger() *Logger {
	return logiface.New[*stumpy.Event](stumpy.WithStumpy())
}

// nopLogger is used when a Loop is constructed with WithLogger(nil); it
// never writes anything, matching logiface.New with no writer configured.
func nopLogger() *Logger {
	return logiface.New[*stumpy.Event]()
}

// NewWriterLogger builds a structured JSON logger writing to w instead of
// stderr, for embedding the runtime's diagnostics into a caller's own log
// sink (or, in tests, a buffer).
func NewWriterLogger(w io.Writer) *Logger {
	return logiface.New[*stumpy.Event](stumpy.WithStumpy(stumpy.WithWriter(w)))
}

// logUnhandledError reports a Future that completed with an error but had
// no continuation attached to observe it — the diagnostic sink the
// runtime uses so fire-and-forget coroutines don't fail silently.
func logUnhandledError(l *Logger, err error) {
	if l == nil {
		return
	}
	l.Warning().Err(err).Log("unhandled future error")
}
