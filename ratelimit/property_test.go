package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/shieldkit/shieldkit/clock"
	"github.com/shieldkit/shieldkit/ratelimit"
)

// TestMemory_SlidingWindowNeverExceedsLimit checks that no matter how
// many checks are thrown at a single key in a single window, the number
// of allowed checks never exceeds the configured limit.
func TestMemory_SlidingWindowNeverExceedsLimit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 20).Draw(rt, "limit")
		attempts := rapid.IntRange(0, 50).Draw(rt, "attempts")

		mock := clock.NewMock(time.Unix(0, 0))
		backend := ratelimit.NewMemory().WithClock(mock)
		ctx := context.Background()

		allowed := 0
		for i := 0; i < attempts; i++ {
			result, err := backend.CheckSlidingWindow(ctx, "prop-key", limit, time.Minute)
			if err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
			if result.Allowed {
				allowed++
			}
		}

		if allowed > limit {
			rt.Fatalf("allowed %d requests, exceeding limit %d", allowed, limit)
		}
	})
}

// TestMemory_LeakyBucketLevelNeverExceedsCapacity checks that the
// bucket's committed level never exceeds capacity regardless of how
// many cost-1 checks are thrown at it within a single window, since
// the leaky bucket's whole purpose is to smooth bursts rather than
// admit them.
func TestMemory_LeakyBucketLevelNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(rt, "capacity")
		attempts := rapid.IntRange(0, 50).Draw(rt, "attempts")

		mock := clock.NewMock(time.Unix(0, 0))
		backend := ratelimit.NewMemory().WithClock(mock)
		ctx := context.Background()

		admitted := 0
		for i := 0; i < attempts; i++ {
			result, err := backend.CheckLeakyBucket(ctx, "prop-key", capacity, capacity, time.Minute, 1)
			if err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
			if result.Allowed {
				admitted++
			}
		}

		if admitted > capacity {
			rt.Fatalf("admitted %d units, exceeding capacity %d", admitted, capacity)
		}
	})
}
