package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/clock"
)

func TestMemory_SlidingWindowBurstThenRecover(t *testing.T) {
	mc := clock.NewMock(time.Now())
	backend := NewMemory().WithClock(mc)
	ctx := context.Background()

	var results []Result
	for i := 0; i < 4; i++ {
		r, err := backend.CheckSlidingWindow(ctx, "caller-1", 3, 10*time.Second)
		require.NoError(t, err)
		results = append(results, r)
	}

	assert.True(t, results[0].Allowed)
	assert.True(t, results[1].Allowed)
	assert.True(t, results[2].Allowed)
	assert.False(t, results[3].Allowed, "fourth call within window should be denied")
	assert.InDelta(t, 10*time.Second, results[3].RetryAfter, float64(500*time.Millisecond))

	mc.Advance(11 * time.Second)
	r, err := backend.CheckSlidingWindow(ctx, "caller-1", 3, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, r.Allowed, "window should have fully reset by t=11")
}

func TestMemory_SlidingWindowKeysAreIndependent(t *testing.T) {
	backend := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r, err := backend.CheckSlidingWindow(ctx, "a", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, r.Allowed)
	}
	r, err := backend.CheckSlidingWindow(ctx, "b", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, r.Allowed, "a different key must not share a's counters")
}

func TestMemory_TokenBucketRefillsOverTime(t *testing.T) {
	mc := clock.NewMock(time.Now())
	backend := NewMemory().WithClock(mc)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r, err := backend.CheckTokenBucket(ctx, "bucket-1", 5, 5, time.Second, 1)
		require.NoError(t, err)
		assert.True(t, r.Allowed)
	}

	r, err := backend.CheckTokenBucket(ctx, "bucket-1", 5, 5, time.Second, 1)
	require.NoError(t, err)
	assert.False(t, r.Allowed, "bucket should be empty after spending all 5 tokens")

	mc.Advance(time.Second)
	r, err = backend.CheckTokenBucket(ctx, "bucket-1", 5, 5, time.Second, 1)
	require.NoError(t, err)
	assert.True(t, r.Allowed, "bucket should have refilled after one full window")
}

func TestMemory_FixedWindowResetsOnBoundary(t *testing.T) {
	mc := clock.NewMock(time.Now())
	backend := NewMemory().WithClock(mc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r, err := backend.CheckFixedWindow(ctx, "caller-1", 3, 10*time.Second)
		require.NoError(t, err)
		assert.True(t, r.Allowed)
	}
	r, err := backend.CheckFixedWindow(ctx, "caller-1", 3, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, r.Allowed, "fourth call within the same fixed window should be denied")

	mc.Advance(10 * time.Second)
	r, err = backend.CheckFixedWindow(ctx, "caller-1", 3, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, r.Allowed, "count must reset once the window boundary rolls over")
}

func TestMemory_LeakyBucketSmoothsBurstAndDrains(t *testing.T) {
	mc := clock.NewMock(time.Now())
	backend := NewMemory().WithClock(mc)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r, err := backend.CheckLeakyBucket(ctx, "bucket-1", 5, 5, time.Second, 1)
		require.NoError(t, err)
		assert.True(t, r.Allowed)
	}

	r, err := backend.CheckLeakyBucket(ctx, "bucket-1", 5, 5, time.Second, 1)
	require.NoError(t, err)
	assert.False(t, r.Allowed, "bucket should be full after five units with no time elapsed")

	mc.Advance(time.Second)
	r, err = backend.CheckLeakyBucket(ctx, "bucket-1", 5, 5, time.Second, 1)
	require.NoError(t, err)
	assert.True(t, r.Allowed, "bucket should have drained after one full window")
}

func TestHeaders_SetsRetryAfterOnlyWhenDenied(t *testing.T) {
	allowed := Headers(Result{Allowed: true, Limit: 3, Remaining: 2, ResetAt: time.Now()})
	assert.Empty(t, allowed.Get("Retry-After"))

	denied := Headers(Result{Allowed: false, Limit: 3, Remaining: 0, ResetAt: time.Now(), RetryAfter: 10 * time.Second})
	assert.Equal(t, "10", denied.Get("Retry-After"))
	assert.Equal(t, "3", denied.Get("X-RateLimit-Limit"))
}

func TestTieredLimiter_TiersDoNotShareCounters(t *testing.T) {
	backend := NewMemory()
	free := NewLimiter(backend, Rule{Algorithm: SlidingWindow, Limit: 1, Window: time.Minute}, "free")
	pro := NewLimiter(backend, Rule{Algorithm: SlidingWindow, Limit: 1, Window: time.Minute}, "pro")
	tiered := NewTieredLimiter(map[string]*Limiter{"free": free, "pro": pro}, nil)

	ctx := context.Background()
	r1, err := tiered.Check(ctx, "free", "user-1")
	require.NoError(t, err)
	assert.True(t, r1.Allowed)

	r2, err := tiered.Check(ctx, "free", "user-1")
	require.NoError(t, err)
	assert.False(t, r2.Allowed, "free tier quota exhausted")

	r3, err := tiered.Check(ctx, "pro", "user-1")
	require.NoError(t, err)
	assert.True(t, r3.Allowed, "pro tier must not inherit free tier's exhausted quota")
}

func TestEndpointLimiter_MatchesPrefixPattern(t *testing.T) {
	backend := NewMemory()
	strict := NewLimiter(backend, Rule{Algorithm: SlidingWindow, Limit: 1, Window: time.Minute}, "strict")
	lax := NewLimiter(backend, Rule{Algorithm: SlidingWindow, Limit: 100, Window: time.Minute}, "lax")
	el := NewEndpointLimiter([]EndpointRule{
		{Pattern: "/v1/chat/*", Limiter: strict},
	}, lax)

	ctx := context.Background()
	r1, err := el.Check(ctx, "/v1/chat/completions", "user-1")
	require.NoError(t, err)
	assert.True(t, r1.Allowed)

	r2, err := el.Check(ctx, "/v1/chat/completions", "user-1")
	require.NoError(t, err)
	assert.False(t, r2.Allowed)

	r3, err := el.Check(ctx, "/v1/other", "user-1")
	require.NoError(t, err)
	assert.True(t, r3.Allowed, "unmatched path should fall back to the lax limiter")
}
