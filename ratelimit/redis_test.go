package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/ratelimit"
)

func newMiniredisBackend(t *testing.T) *ratelimit.Redis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedis(client, "shieldkit-test:")
}

func TestRedis_SlidingWindowDeniesOverLimit(t *testing.T) {
	backend := newMiniredisBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := backend.CheckSlidingWindow(ctx, "k1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := backend.CheckSlidingWindow(ctx, "k1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Positive(t, result.RetryAfter)
}

func TestRedis_TokenBucketSpendsFractionalTokensAcrossCalls(t *testing.T) {
	backend := newMiniredisBackend(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := backend.CheckTokenBucket(ctx, "bucket1", 5, 5, time.Second, 1)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := backend.CheckTokenBucket(ctx, "bucket1", 5, 5, time.Second, 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestRedis_FixedWindowDeniesOverLimit(t *testing.T) {
	backend := newMiniredisBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := backend.CheckFixedWindow(ctx, "fw1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := backend.CheckFixedWindow(ctx, "fw1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Positive(t, result.RetryAfter)
}

func TestRedis_LeakyBucketDeniesWhenFull(t *testing.T) {
	backend := newMiniredisBackend(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := backend.CheckLeakyBucket(ctx, "lb1", 5, 5, time.Second, 1)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := backend.CheckLeakyBucket(ctx, "lb1", 5, 5, time.Second, 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestRedis_SlidingWindowKeysAreIndependent(t *testing.T) {
	backend := newMiniredisBackend(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := backend.CheckSlidingWindow(ctx, "a", 2, time.Minute)
		require.NoError(t, err)
	}
	result, err := backend.CheckSlidingWindow(ctx, "b", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
