// Package ratelimit implements sliding-window, token-bucket,
// fixed-window, and leaky-bucket rate limiting over a pluggable
// backend, with in-process and Redis implementations and an HTTP
// header builder.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Backend performs the four atomic rate-limit algorithms against a shared
// keyspace. Implementations must be linearizable per key under
// concurrent callers.
type Backend interface {
	// CheckSlidingWindow allows at most limit events per window per key.
	CheckSlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	// CheckTokenBucket allows cost tokens to be spent from a bucket of
	// capacity refilled at rate tokens/window.
	CheckTokenBucket(ctx context.Context, key string, capacity int, refillPerWindow int, window time.Duration, cost int) (Result, error)
	// CheckFixedWindow allows at most limit events within the current
	// window of length window per key. A window opens at the first check
	// after the previous one ended (it is not aligned to wall-clock
	// boundaries). Unlike CheckSlidingWindow, the window boundary is fixed
	// (key's count resets to zero the instant the window rolls over)
	// rather than trailing from the oldest counted event.
	CheckFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	// CheckLeakyBucket admits cost units of work if the bucket (drained
	// at a constant leakRate per window) has room; otherwise denies.
	// Unlike CheckTokenBucket, which front-loads a burst up to
	// capacity, a leaky bucket smooths output to a constant rate
	// regardless of how bursty the input is.
	CheckLeakyBucket(ctx context.Context, key string, capacity int, leakRate int, window time.Duration, cost int) (Result, error)
}

// Headers builds the standard rate-limit response headers from a Result.
func Headers(r Result) http.Header {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
	if !r.Allowed {
		h.Set("Retry-After", fmt.Sprintf("%.0f", r.RetryAfter.Seconds()))
	}
	return h
}
