package ratelimiter

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabled(t *testing.T) {
	for _, l := range []*Limiter{nil, New(0, 0), New(0, 50)} {
		assert.False(t, l.Enabled())
		for i := 0; i < 1000; i++ {
			require.True(t, l.Allow())
		}
		assert.NoError(t, l.Wait(context.Background()))
	}
	assert.True(t, math.IsInf(New(0, 0).Tokens(), 1))
}

func TestAllowEnforcesBurst(t *testing.T) {
	l := New(10, 5)
	require.True(t, l.Enabled())

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(), "command %d is within the burst", i)
	}
	assert.False(t, l.Allow(), "bucket should be empty")

	// 10 commands/s refills one token every 100ms.
	time.Sleep(120 * time.Millisecond)
	assert.True(t, l.Allow())
}

func TestZeroBurstDefaultsToOne(t *testing.T) {
	l := New(10, 0)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestWaitThrottles(t *testing.T) {
	l := New(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	// One token immediately, two more at 50ms intervals.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestWaitHonoursCancellation(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx))
}

func TestWaitDisabledReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New(0, 0).Wait(ctx), context.Canceled)
}

func TestTokensTracksBucket(t *testing.T) {
	l := New(5, 3)
	assert.InDelta(t, 3.0, l.Tokens(), 0.01, "bucket starts full")

	require.True(t, l.Allow())
	assert.InDelta(t, 2.0, l.Tokens(), 0.1)

	var nilLimiter *Limiter
	assert.True(t, math.IsInf(nilLimiter.Tokens(), 1))
}
