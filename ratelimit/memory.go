package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/shieldkit/shieldkit/clock"
)

// Memory is an in-process Backend. Each key gets its own bucket state,
// guarded by a per-key mutex so concurrent checks on the same key are
// linearizable without serializing unrelated keys.
type Memory struct {
	clk clock.Clock

	mu           sync.Mutex
	windows      map[string]*slidingWindowState
	buckets      map[string]*tokenBucketState
	fixedWindows map[string]*fixedWindowState
	leakyBuckets map[string]*leakyBucketState
}

type slidingWindowState struct {
	mu    sync.Mutex
	times []time.Time
}

type tokenBucketState struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

type fixedWindowState struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

type leakyBucketState struct {
	mu       sync.Mutex
	level    float64
	lastLeak time.Time
}

// NewMemory creates an empty in-process rate limit backend.
func NewMemory() *Memory {
	return &Memory{
		clk:          clock.Real{},
		windows:      make(map[string]*slidingWindowState),
		buckets:      make(map[string]*tokenBucketState),
		fixedWindows: make(map[string]*fixedWindowState),
		leakyBuckets: make(map[string]*leakyBucketState),
	}
}

// WithClock overrides the clock used for tests.
func (m *Memory) WithClock(c clock.Clock) *Memory {
	m.clk = c
	return m
}

func (m *Memory) windowFor(key string) *slidingWindowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok {
		w = &slidingWindowState{}
		m.windows[key] = w
	}
	return w
}

func (m *Memory) bucketFor(key string, capacity int) *tokenBucketState {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[key]
	if !ok {
		b = &tokenBucketState{tokens: float64(capacity), lastRefill: m.clk.Now()}
		m.buckets[key] = b
	}
	return b
}

func (m *Memory) fixedWindowFor(key string) *fixedWindowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixedWindows[key]
	if !ok {
		f = &fixedWindowState{}
		m.fixedWindows[key] = f
	}
	return f
}

func (m *Memory) leakyBucketFor(key string) *leakyBucketState {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leakyBuckets[key]
	if !ok {
		l = &leakyBucketState{lastLeak: m.clk.Now()}
		m.leakyBuckets[key] = l
	}
	return l
}

// CheckSlidingWindow removes entries older than window, counts what
// remains, and records the new event before deciding allow/deny so the
// count used for the decision already includes this request.
func (m *Memory) CheckSlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	w := m.windowFor(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := m.clk.Now()
	cutoff := now.Add(-window)

	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept

	var resetAt time.Time
	if len(w.times) > 0 {
		resetAt = w.times[0].Add(window)
	} else {
		resetAt = now.Add(window)
	}

	if len(w.times) >= limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	w.times = append(w.times, now)
	remaining := limit - len(w.times)
	if remaining < 0 {
		remaining = 0
	}
	if len(w.times) == 1 {
		resetAt = now.Add(window)
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// CheckTokenBucket refills tokens for elapsed time, then spends cost
// tokens if enough are available.
func (m *Memory) CheckTokenBucket(ctx context.Context, key string, capacity int, refillPerWindow int, window time.Duration, cost int) (Result, error) {
	b := m.bucketFor(key, capacity)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := m.clk.Now()
	ratePerSec := float64(refillPerWindow) / window.Seconds()

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * ratePerSec
		if b.tokens > float64(capacity) {
			b.tokens = float64(capacity)
		}
		b.lastRefill = now
	}

	if b.tokens < float64(cost) {
		needed := float64(cost) - b.tokens
		retryAfter := time.Duration(needed / ratePerSec * float64(time.Second))
		return Result{
			Allowed:    false,
			Limit:      capacity,
			Remaining:  int(b.tokens),
			ResetAt:    now.Add(retryAfter),
			RetryAfter: retryAfter,
		}, nil
	}

	b.tokens -= float64(cost)
	return Result{
		Allowed:   true,
		Limit:     capacity,
		Remaining: int(b.tokens),
		ResetAt:   now,
	}, nil
}

// CheckFixedWindow counts events against a window that opens at the
// first check after the previous one ended and resets to zero the instant
// it rolls over, rather than trailing from the oldest counted event the
// way CheckSlidingWindow does. Windows are not aligned to wall-clock
// boundaries.
func (m *Memory) CheckFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	f := m.fixedWindowFor(key)
	f.mu.Lock()
	defer f.mu.Unlock()

	now := m.clk.Now()
	if f.windowStart.IsZero() || now.Sub(f.windowStart) >= window {
		f.windowStart = now
		f.count = 0
	}
	resetAt := f.windowStart.Add(window)

	if f.count >= limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	f.count++
	remaining := limit - f.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// CheckLeakyBucket drains the bucket's level at leakRate units per
// window since the last check, then admits cost units if the
// resulting level leaves room under capacity. Unlike CheckTokenBucket,
// which lets a caller spend a whole idle refill as one burst, a leaky
// bucket smooths output to a constant rate: admission depends only on
// how full the bucket currently is, never on banked idle capacity.
func (m *Memory) CheckLeakyBucket(ctx context.Context, key string, capacity int, leakRate int, window time.Duration, cost int) (Result, error) {
	b := m.leakyBucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := m.clk.Now()
	leakPerSec := float64(leakRate) / window.Seconds()

	elapsed := now.Sub(b.lastLeak).Seconds()
	if elapsed > 0 {
		b.level -= elapsed * leakPerSec
		if b.level < 0 {
			b.level = 0
		}
		b.lastLeak = now
	}

	if b.level+float64(cost) > float64(capacity) {
		overflow := b.level + float64(cost) - float64(capacity)
		retryAfter := time.Duration(overflow / leakPerSec * float64(time.Second))
		return Result{
			Allowed:    false,
			Limit:      capacity,
			Remaining:  capacity - int(b.level),
			ResetAt:    now.Add(retryAfter),
			RetryAfter: retryAfter,
		}, nil
	}

	b.level += float64(cost)
	return Result{
		Allowed:   true,
		Limit:     capacity,
		Remaining: capacity - int(b.level),
		ResetAt:   now,
	}, nil
}
