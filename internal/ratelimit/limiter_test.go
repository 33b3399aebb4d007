package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when slept on, so tests never wait in real time.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	cancel bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.cancel {
		return context.Canceled
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(maxRequests int, window time.Duration) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(maxRequests, window)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestWait_BurstWithinCapNeverSleeps(t *testing.T) {
	l, clock := newTestLimiter(100, time.Minute)

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Empty(t, clock.slept)
}

func TestWait_SleepsUntilWindowRollsOver(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}

	// The fourth caller must wait until the oldest timestamp leaves the
	// window.
	require.NoError(t, l.Wait(context.Background()))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, time.Minute+margin, clock.slept[0])
}

func TestWait_EvictionFreesCapacity(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))

	clock.now = clock.now.Add(2 * time.Minute)

	require.NoError(t, l.Wait(context.Background()))
	assert.Empty(t, clock.slept)
}

func TestWait_CancelledWhileWaiting(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	require.NoError(t, l.Wait(context.Background()))

	clock.cancel = true
	err := l.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
