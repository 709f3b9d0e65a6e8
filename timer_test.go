package aio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueue_DueBeforeReturnsInDeadlineOrder(t *testing.T) {
	q := newTimerQueue(0)
	base := time.Now()
	q.schedule(base.Add(3*time.Millisecond), func() {})
	q.schedule(base.Add(1*time.Millisecond), func() {})
	q.schedule(base.Add(2*time.Millisecond), func() {})

	due := q.dueBefore(base.Add(10 * time.Millisecond))
	require.Len(t, due, 3)
	assert.True(t, due[0].deadline.Before(due[1].deadline))
	assert.True(t, due[1].deadline.Before(due[2].deadline))
}

func TestTimerQueue_CancelledTimerSkippedByDueBefore(t *testing.T) {
	q := newTimerQueue(0)
	base := time.Now()
	t1 := q.schedule(base.Add(time.Millisecond), func() {})
	t2 := q.schedule(base.Add(time.Millisecond), func() {})
	q.cancel(t1)

	due := q.dueBefore(base.Add(10 * time.Millisecond))
	require.Len(t, due, 1)
	assert.Same(t, t2, due[0])
}

func TestTimerQueue_NextDeadlineSkipsCancelledHead(t *testing.T) {
	q := newTimerQueue(0)
	base := time.Now()
	head := q.schedule(base.Add(time.Millisecond), func() {})
	q.schedule(base.Add(5*time.Millisecond), func() {})
	q.cancel(head)

	d, ok := q.nextDeadline()
	require.True(t, ok)
	assert.True(t, d.Sub(base) >= 4*time.Millisecond)
}

func TestTimerQueue_CompactionThresholdTriggersRebuild(t *testing.T) {
	q := newTimerQueue(2)
	base := time.Now()
	var timers []*Timer
	for i := 0; i < 6; i++ {
		timers = append(timers, q.schedule(base.Add(time.Duration(i+1)*time.Millisecond), func() {}))
	}

	// Cancel more than threshold(2) and more than half of len(6): 4 cancellations.
	for i := 0; i < 4; i++ {
		q.cancel(timers[i])
	}

	assert.Equal(t, 0, q.cancelled, "maybeCompact should have rebuilt the heap and reset the counter")
	assert.Equal(t, 2, q.len())
}
