package exchangerate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-core/pkg/timeutil"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 2, Burst: 2}, clock)

	_, ok := rl.reserve()
	assert.True(t, ok)
	_, ok = rl.reserve()
	assert.True(t, ok)

	wait, ok := rl.reserve()
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	clock.Advance(500 * time.Millisecond)
	_, ok = rl.reserve()
	assert.True(t, ok)

	clock.Advance(time.Hour)
	assert.Equal(t, 2.0, rl.Available(), "refill is capped at burst")
}

func TestRateLimiter_Pause(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 5, DefaultPause: 30 * time.Second}, clock)

	rl.Pause(0)
	wait, ok := rl.reserve()
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	rl.Pause(10 * time.Second)
	wait, _ = rl.reserve()
	assert.Equal(t, 30*time.Second, wait, "a shorter pause does not shorten an existing one")

	clock.Advance(31 * time.Second)
	_, ok = rl.reserve()
	assert.True(t, ok)
}

func TestRateLimiter_WaitGivesUpBeforeDeadline(t *testing.T) {
	clock := timeutil.NewManualClock(time.Now())
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1}, clock)
	rl.Pause(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, rl.Wait(ctx), ErrRateLimited)
}

func TestRateLimiter_WaitSucceeds(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 100, Burst: 1}, nil)

	require.NoError(t, rl.Wait(context.Background()))
	require.NoError(t, rl.Wait(context.Background()), "second token arrives after ~10ms")
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 120*time.Second, parseRetryAfter("120", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("later", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter("Sun, 10 Mar 2024 12:01:30 UTC", now))
}
