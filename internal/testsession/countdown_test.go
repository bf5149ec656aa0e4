package testsession

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdown_ReachesZeroAfterTicks(t *testing.T) {
	clock := newManualClock()
	var (
		mu      sync.Mutex
		ticks   []int
		expired atomic.Int32
	)
	c := NewCountdown(clock, func(r int) {
		mu.Lock()
		ticks = append(ticks, r)
		mu.Unlock()
	}, func() { expired.Add(1) })

	require.NoError(t, c.Start(3))
	assert.Equal(t, CountdownRunning, c.State())

	clock.Advance(3)
	require.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, CountdownExpired, c.State())
	assert.Equal(t, 0, c.Remaining())
	mu.Lock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
	mu.Unlock()

	// Further ticks are never delivered and the callback stays at one call.
	clock.Advance(5)
	assert.Equal(t, int32(1), expired.Load())
	assert.ErrorIs(t, c.Start(10), ErrCountdownExpired)
}

func TestCountdown_NonPositiveStartExpiresImmediately(t *testing.T) {
	for _, remaining := range []int{0, -30} {
		clock := newManualClock()
		fired := false
		c := NewCountdown(clock, nil, func() { fired = true })

		require.NoError(t, c.Start(remaining))

		assert.True(t, fired, "expiry must fire before Start returns")
		assert.Equal(t, CountdownExpired, c.State())
		assert.Equal(t, 0, c.Remaining())
		assert.Zero(t, clock.count(), "no ticker for an expired countdown")
	}
}

func TestCountdown_StopHaltsDecrements(t *testing.T) {
	clock := newManualClock()
	var expired atomic.Bool
	c := NewCountdown(clock, nil, func() { expired.Store(true) })

	require.NoError(t, c.Start(10))
	clock.Advance(2)
	require.Eventually(t, func() bool { return c.Remaining() == 8 }, time.Second, time.Millisecond)

	c.Stop()
	clock.Advance(3)

	assert.Equal(t, 8, c.Remaining())
	assert.Equal(t, CountdownStopped, c.State())
	assert.False(t, expired.Load())
}

func TestCountdown_RestartAfterStop(t *testing.T) {
	clock := newManualClock()
	c := NewCountdown(clock, nil, nil)

	require.NoError(t, c.Start(5))
	assert.ErrorIs(t, c.Start(5), ErrCountdownRunning)

	c.Stop()
	require.NoError(t, c.Start(c.Remaining()))
	assert.Equal(t, 2, clock.count())

	clock.Advance(1)
	require.Eventually(t, func() bool { return c.Remaining() == 4 }, time.Second, time.Millisecond)
	c.Stop()
}

func TestCountdown_SystemClockDefault(t *testing.T) {
	c := NewCountdown(nil, nil, nil)
	assert.Equal(t, SystemClock, c.clock)
	assert.Equal(t, CountdownNotStarted, c.State())
}
