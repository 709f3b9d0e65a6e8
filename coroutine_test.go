package aio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawn_ReturnsValue(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	result := make(chan any, 1)
	loop.CallSoon(func() {
		Spawn(loop, func(yield Yield) (any, error) {
			return 7, nil
		}).Attach(func(f *Future) {
			result <- f.Result()
		})
	})

	select {
	case v := <-result:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("spawned coroutine never completed")
	}
}

func TestSpawn_PropagatesError(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	boom := &TypeError{Message: "boom"}
	result := make(chan error, 1)
	loop.CallSoon(func() {
		Spawn(loop, func(yield Yield) (any, error) {
			return nil, boom
		}).Attach(func(f *Future) {
			result <- f.Err()
		})
	})

	select {
	case err := <-result:
		assert.Same(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("spawned coroutine never completed")
	}
}

func TestSpawn_SleepZeroLoopCompletesAfterNIterations(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	const n = 50
	result := make(chan int, 1)
	loop.CallSoon(func() {
		Spawn(loop, func(yield Yield) (any, error) {
			count := 0
			for i := 0; i < n; i++ {
				if err := yield(Sleep(loop, 0)); err != nil {
					return nil, err
				}
				count++
			}
			return count, nil
		}).Attach(func(f *Future) {
			result <- f.Result().(int)
		})
	})

	select {
	case v := <-result:
		assert.Equal(t, n, v)
	case <-time.After(2 * time.Second):
		t.Fatal("sleep(0) loop never completed")
	}
}

func TestSleep_ResolvesAfterDelay(t *testing.T) {
	loop, stop := runLoop(t)
	defer stop()

	start := make(chan time.Time, 1)
	result := make(chan time.Duration, 1)
	loop.CallSoon(func() {
		start <- time.Now()
		Sleep(loop, 30*time.Millisecond).Attach(func(f *Future) {
			result <- time.Since(<-start)
		})
	})

	select {
	case d := <-result:
		require.True(t, d >= 25*time.Millisecond, "slept for %v, want >= 25ms", d)
	case <-time.After(time.Second):
		t.Fatal("sleep never resolved")
	}
}
