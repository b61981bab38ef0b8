package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_IdleFetchingIdle(t *testing.T) {
	c := NewController("ohlc", 0, zerolog.Nop())
	assert.Equal(t, StateIdle, c.State())

	err := c.Run(context.Background(), func(context.Context) error {
		assert.Equal(t, StateFetching, c.State())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.LastError())
}

func TestController_FailureThenRetry(t *testing.T) {
	c := NewController("ohlc", 0, zerolog.Nop())
	boom := errors.New("boom")

	err := c.Run(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, c.State())
	assert.ErrorIs(t, c.LastError(), boom)
	assert.Equal(t, "boom", c.Status().LastError)

	require.NoError(t, c.Run(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.LastError())
}

func TestController_RejectsTriggerWhileBusy(t *testing.T) {
	c := NewController("rankings", 0, zerolog.Nop())
	release := make(chan struct{})

	require.NoError(t, c.Start(context.Background(), func(context.Context) error {
		<-release
		return nil
	}))
	assert.Equal(t, StateFetching, c.State())

	err := c.Run(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)
	err = c.Start(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestController_DebounceCoalescesBurst(t *testing.T) {
	c := NewController("search", 40*time.Millisecond, zerolog.Nop())
	var runs int32
	fn := func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}

	for i := 0; i < 5; i++ {
		c.Debounce(fn)
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestController_DebounceSupersedesFiredTimer(t *testing.T) {
	c := NewController("search", 10*time.Millisecond, zerolog.Nop())
	var first, second int32

	c.Debounce(func(context.Context) error {
		atomic.AddInt32(&first, 1)
		return nil
	})

	// Hold the lock past the window so the first timer fires and waits.
	c.mu.Lock()
	time.Sleep(40 * time.Millisecond)
	c.debounceLocked(func(context.Context) error {
		atomic.AddInt32(&second, 1)
		return nil
	})
	pending := c.timer
	c.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	c.mu.Lock()
	tracked := c.timer
	c.mu.Unlock()
	if atomic.LoadInt32(&second) == 0 {
		assert.Same(t, pending, tracked, "pending timer must stay stoppable")
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestController_StopCancelsPendingAndRunning(t *testing.T) {
	c := NewController("search", 20*time.Millisecond, zerolog.Nop())
	var runs int32
	c.Debounce(func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	c.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
	assert.ErrorIs(t, c.Run(context.Background(), func(context.Context) error { return nil }), ErrStopped)
}

func TestController_StopCancelsRunningFetch(t *testing.T) {
	c := NewController("ohlc", 0, zerolog.Nop())
	started := make(chan struct{})

	require.NoError(t, c.Start(context.Background(), func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started
	c.Stop()

	assert.Eventually(t, func() bool { return c.State() == StateFailed }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.LastError(), context.Canceled)
}
