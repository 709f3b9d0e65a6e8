package aio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T) (*Loop, func()) {
	t.Helper()
	loop, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	return loop, func() {
		cancel()
		<-done
	}
}

func TestLock_FIFOOrdering(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	lock := NewLock(loop)
	var order []int
	results := make(chan struct{}, 4)

	acquireThenRelease := func(id int) {
		loop.CallSoon(func() {
			lock.Acquire().Attach(func(*Future) {
				order = append(order, id)
				lock.Release().Attach(func(*Future) {
					results <- struct{}{}
				})
			})
		})
	}

	// Submit in strict order with a tick between each so they queue up
	// as waiters in the order submitted.
	acquireThenRelease(1)
	waitDrain(t, loop)
	acquireThenRelease(2)
	waitDrain(t, loop)
	acquireThenRelease(3)
	waitDrain(t, loop)
	acquireThenRelease(4)

	for i := 0; i < 4; i++ {
		select {
		case <-results:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for lock round-trip")
		}
	}

	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

// waitDrain gives the loop goroutine a moment to process what's already
// been submitted before the test submits more work, so FIFO submission
// order is observed as FIFO waiter order.
func waitDrain(t *testing.T, loop *Loop) {
	t.Helper()
	done := make(chan struct{})
	loop.CallSoon(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not drain in time")
	}
}

func TestQueue_BoundedBlockingPut(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	q := NewQueue(loop, 1)

	put1 := make(chan struct{})
	put2 := make(chan struct{})
	put3 := make(chan struct{})

	loop.CallSoon(func() {
		q.Put("a", true, 0).Attach(func(*Future) { close(put1) })
	})
	<-put1

	loop.CallSoon(func() {
		q.Put("b", true, 0).Attach(func(*Future) { close(put2) })
	})
	loop.CallSoon(func() {
		q.Put("c", true, 0).Attach(func(*Future) { close(put3) })
	})

	select {
	case <-put2:
		t.Fatal("second put resolved before any get freed capacity")
	case <-time.After(50 * time.Millisecond):
	}

	got1 := make(chan any, 1)
	loop.CallSoon(func() {
		q.Get(true, 0).Attach(func(f *Future) { got1 <- f.Result() })
	})
	select {
	case v := <-got1:
		assert.Equal(t, "a", v)
	case <-time.After(time.Second):
		t.Fatal("first get timed out")
	}

	select {
	case <-put2:
	case <-time.After(time.Second):
		t.Fatal("second put did not resolve after first get")
	}

	got2 := make(chan any, 1)
	loop.CallSoon(func() {
		q.Get(true, 0).Attach(func(f *Future) { got2 <- f.Result() })
	})
	select {
	case v := <-got2:
		assert.Equal(t, "b", v)
	case <-time.After(time.Second):
		t.Fatal("second get timed out")
	}

	select {
	case <-put3:
	case <-time.After(time.Second):
		t.Fatal("third put did not resolve after second get")
	}

	got3 := make(chan any, 1)
	loop.CallSoon(func() {
		q.Get(true, 0).Attach(func(f *Future) { got3 <- f.Result() })
	})
	select {
	case v := <-got3:
		assert.Equal(t, "c", v)
	case <-time.After(time.Second):
		t.Fatal("third get timed out")
	}

	qsize := make(chan int, 1)
	loop.CallSoon(func() { qsize <- q.Qsize() })
	assert.Equal(t, 0, <-qsize)
}

func TestQueue_NonBlockingGetOnEmptyFailsWithEmptyError(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	q := NewQueue(loop, 0)
	f := q.Get(false, 0)
	assert.Same(t, ErrEmpty, f.Err())
}

func TestQueue_NonBlockingPutOnFullFailsWithFullError(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	q := NewQueue(loop, 1)
	done := make(chan struct{})
	loop.CallSoon(func() {
		q.Put("x", true, 0)
		close(done)
	})
	<-done

	putResult := make(chan error, 1)
	loop.CallSoon(func() {
		f := q.Put("y", false, 0)
		putResult <- f.Err()
	})
	assert.Same(t, ErrFull, <-putResult)
}

func TestQueue_GetTimeoutFailsWithEmptyError(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	q := NewQueue(loop, 0)
	result := make(chan error, 1)
	loop.CallSoon(func() {
		q.Get(true, 20*time.Millisecond).Attach(func(f *Future) {
			result <- f.Err()
		})
	})

	select {
	case err := <-result:
		var ce *CancelledError
		require.ErrorAs(t, err, &ce)
		assert.Same(t, ErrEmpty, ce.Cause)
	case <-time.After(time.Second):
		t.Fatal("get timeout never fired")
	}
}
