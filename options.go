package aio

import "time"

// defaultPollTimeout is the ceiling used when the ready queue is empty and
// no timer is pending, matching the original runtime's select/poll ceiling.
const defaultPollTimeout = 10 * time.Second

// defaultMaxEvents bounds how many readiness events PollIO asks the
// backend to return per call.
const defaultMaxEvents = 256

// timerCancelCompactionThreshold is the minimum number of cancelled timers
// before the heap becomes eligible for compaction; it must ALSO exceed
// half the heap's length before compaction actually runs.
const timerCancelCompactionThreshold = 512

type loopConfig struct {
	logger       *Logger
	pollTimeout  time.Duration
	maxEvents    int
	timerCompact int
}

func defaultLoopConfig() loopConfig {
	return loopConfig{
		logger:       NewDefaultLogger(),
		pollTimeout:  defaultPollTimeout,
		maxEvents:    defaultMaxEvents,
		timerCompact: timerCancelCompactionThreshold,
	}
}

// Option configures a Loop at construction time.
type Option interface {
	apply(*loopConfig)
}

type optionFunc func(*loopConfig)

func (f optionFunc) apply(c *loopConfig) { f(c) }

// WithLogger overrides the logger used for diagnostics (unhandled future
// errors, accept-loop warnings, poller failures). Passing nil installs a
// logger with no configured writer, silencing all output.
func WithLogger(l *Logger) Option {
	return optionFunc(func(c *loopConfig) {
		if l == nil {
			l = nopLogger()
		}
		c.logger = l
	})
}

// WithPollTimeout overrides the ceiling used for PollIO when no timer is
// pending and the ready queue is empty.
func WithPollTimeout(d time.Duration) Option {
	return optionFunc(func(c *loopConfig) {
		if d > 0 {
			c.pollTimeout = d
		}
	})
}

// WithMaxEvents overrides how many readiness events are requested per
// PollIO call.
func WithMaxEvents(n int) Option {
	return optionFunc(func(c *loopConfig) {
		if n > 0 {
			c.maxEvents = n
		}
	})
}

// WithTimerCompactionThreshold overrides the cancelled-timer count beyond
// which the timer heap becomes eligible for compaction.
func WithTimerCompactionThreshold(n int) Option {
	return optionFunc(func(c *loopConfig) {
		if n > 0 {
			c.timerCompact = n
		}
	})
}

func resolveOptions(opts []Option) loopConfig {
	cfg := defaultLoopConfig()
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(&cfg)
	}
	return cfg
}
