package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	ex := New(DefaultConfig(), nil)
	calls := 0
	val, res := ex.Do(context.Background(), func(context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	require.Equal(t, Success, res.Outcome)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ok", val)
	assert.Empty(t, res.Delays)
}

func TestDo_ExhaustedWithExponentialJitter(t *testing.T) {
	cfg := Config{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Strategy:    Exponential,
		Multiplier:  2,
		JitterLo:    0.8,
		JitterHi:    1.2,
	}
	ex := New(cfg, nil)
	ex.sleep = func(context.Context, time.Duration) error { return nil } // skip real waiting

	attempts := 0
	_, res := ex.Do(context.Background(), func(context.Context) (any, error) {
		attempts++
		return nil, errBoom
	})

	require.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, 4, res.Attempts)
	require.Len(t, res.Delays, 3)
	for i, d := range res.Delays {
		n := i + 1
		expected := 100 * time.Millisecond * time.Duration(1<<uint(n-1)) // multiplier^(n-1)
		lo := time.Duration(float64(expected) * 0.8)
		hi := time.Duration(float64(expected) * 1.2)
		assert.GreaterOrEqualf(t, d, lo, "delay %d below expected jitter range", i)
		assert.LessOrEqualf(t, d, hi, "delay %d above expected jitter range", i)
	}
	var exhausted *ErrExhausted
	require.ErrorAs(t, res.Err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
}

func TestDo_AbortsOnNonRetryable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NonRetryable = func(err error) bool { return errors.Is(err, errBoom) }
	ex := New(cfg, nil)

	attempts := 0
	_, res := ex.Do(context.Background(), func(context.Context) (any, error) {
		attempts++
		return nil, errBoom
	})
	assert.Equal(t, Aborted, res.Outcome)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, res.Delays)
}

func TestDo_TimesOutBeforeFirstAttempt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TotalTimeout = time.Nanosecond
	ex := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, res := ex.Do(ctx, func(context.Context) (any, error) {
		return "unreachable", nil
	})
	assert.Equal(t, TimedOut, res.Outcome)
}

func TestFib(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 1, 3: 2, 4: 3, 5: 5, 6: 8}
	for n, want := range cases {
		assert.Equal(t, want, fib(n), "fib(%d)", n)
	}
}
