package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestCache_SetGet(t *testing.T) {
	c := NewCache(timeutil.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", payload{Name: "a", Value: 1.5}, time.Minute))

	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Value: 1.5}, got)
}

func TestCache_MissingKey(t *testing.T) {
	c := NewCache(nil)

	var got payload
	err := c.Get(context.Background(), "nope", &got)
	assert.True(t, shared.IsCacheMiss(err))
}

func TestCache_ExpiresWithClock(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewCache(clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Hour))

	clock.Advance(59 * time.Minute)
	var v int
	require.NoError(t, c.Get(ctx, "k", &v))
	assert.Equal(t, 1, v)

	clock.Advance(time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "k", &v), shared.ErrCacheMiss)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewCache(clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	clock.Advance(1000 * time.Hour)

	var v string
	require.NoError(t, c.Get(ctx, "k", &v))
	assert.Equal(t, "v", v)
}

func TestCache_RejectsBadInput(t *testing.T) {
	c := NewCache(nil)
	ctx := context.Background()

	assert.Error(t, c.Set(ctx, "", 1, time.Minute))
	assert.Error(t, c.Set(ctx, "k", 1, -time.Minute))
	assert.Error(t, c.Set(ctx, "k", make(chan int), time.Minute))
	assert.Error(t, c.DeleteByPattern(ctx, "["))
}

func TestCache_DeleteAndPattern(t *testing.T) {
	c := NewCache(nil)
	ctx := context.Background()

	for _, k := range []string{"exchange_rate:SAR:EGP", "exchange_rate:USD:EUR", "course_progress:c1:s1"} {
		require.NoError(t, c.Set(ctx, k, 1, time.Hour))
	}

	require.NoError(t, c.Delete(ctx, "exchange_rate:USD:EUR", "missing"))
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.DeleteByPattern(ctx, "exchange_rate:*"))
	assert.Equal(t, 1, c.Len())

	var v int
	assert.NoError(t, c.Get(ctx, "course_progress:c1:s1", &v))
}
