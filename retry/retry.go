// Package retry implements a configurable retry executor: multiple backoff
// schedules, jitter, an optional total timeout, and pluggable retryability
// predicates.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/internal/metrics"
)

// Strategy selects the backoff schedule.
type Strategy string

const (
	Constant    Strategy = "constant"
	Linear      Strategy = "linear"
	Exponential Strategy = "exponential"
	Fibonacci   Strategy = "fibonacci"
)

// Outcome classifies how a Do call ended.
type Outcome string

const (
	Success   Outcome = "success"
	Exhausted Outcome = "exhausted"
	TimedOut  Outcome = "timeout"
	Aborted   Outcome = "aborted"
)

// ErrExhausted wraps the last observed error when all attempts are spent.
type ErrExhausted struct {
	Attempts int
	Cause    error
}

func (e *ErrExhausted) Error() string {
	return fmt.Sprintf("retry: exhausted after %d attempts: %v", e.Attempts, e.Cause)
}
func (e *ErrExhausted) Unwrap() error { return e.Cause }

// ErrTimedOut is returned when total_timeout elapses.
var ErrTimedOut = errors.New("retry: total timeout exceeded")

// Config configures a retry executor.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Strategy    Strategy
	Multiplier  float64 // exponential only
	// JitterLo/JitterHi multiply the computed delay, e.g. [0.8, 1.2]. A
	// zero JitterHi disables jitter.
	JitterLo, JitterHi float64
	// TotalTimeout bounds the whole Do call; zero disables it.
	TotalTimeout time.Duration
	// Retryable reports whether err should trigger another attempt. Nil
	// means "retry everything not rejected by NonRetryable".
	Retryable func(err error) bool
	// NonRetryable is checked first; if it reports true the error aborts
	// immediately regardless of Retryable.
	NonRetryable func(err error) bool
	// RetryableResult lets callers force a retry based on a successful but
	// unacceptable result (e.g. HTTP 503 returned without an error).
	RetryableResult func(result any) bool
	// OnRetry fires before each delay; OnSuccess/OnFailure fire once at
	// the end.
	OnRetry   func(attempt int, err error, delay time.Duration)
	OnSuccess func(attempts int)
	OnFailure func(outcome Outcome, attempts int, err error)
	// Preset name, used only for metric labels.
	preset string
}

// DefaultConfig returns the package default: 3 attempts, exponential
// backoff with each delay scaled by a random factor in [0.8, 1.2].
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Strategy:    Exponential,
		Multiplier:  2.0,
		JitterLo:    0.8,
		JitterHi:    1.2,
		preset:      "default",
	}
}

// LLMPreset targets LLM API calls: generous total timeout, exponential
// backoff.
func LLMPreset() Config {
	c := DefaultConfig()
	c.MaxAttempts = 4
	c.BaseDelay = 500 * time.Millisecond
	c.MaxDelay = 20 * time.Second
	c.TotalTimeout = 60 * time.Second
	c.preset = "llm"
	return c
}

// HTTPPreset targets generic outbound HTTP clients.
func HTTPPreset() Config {
	c := DefaultConfig()
	c.MaxAttempts = 3
	c.BaseDelay = 100 * time.Millisecond
	c.MaxDelay = 5 * time.Second
	c.preset = "http"
	return c
}

// DatabasePreset targets transient DB connection errors: linear backoff,
// tight bound.
func DatabasePreset() Config {
	c := DefaultConfig()
	c.Strategy = Linear
	c.MaxAttempts = 5
	c.BaseDelay = 50 * time.Millisecond
	c.MaxDelay = 2 * time.Second
	c.preset = "database"
	return c
}

// QueuePreset targets message-queue publish/consume retries: fibonacci
// backoff, no hard cap on total time.
func QueuePreset() Config {
	c := DefaultConfig()
	c.Strategy = Fibonacci
	c.MaxAttempts = 6
	c.BaseDelay = 100 * time.Millisecond
	c.MaxDelay = 30 * time.Second
	c.preset = "queue"
	return c
}

// IdempotentPreset targets operations known safe to retry aggressively.
func IdempotentPreset() Config {
	c := DefaultConfig()
	c.MaxAttempts = 8
	c.BaseDelay = 50 * time.Millisecond
	c.MaxDelay = 10 * time.Second
	c.preset = "idempotent"
	return c
}

// Result carries the terminal outcome of a Do call.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
	Delays   []time.Duration
	Err      error
}

// Executor runs a function under a retry Config.
type Executor struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

func WithMetrics(m *metrics.Collector) Option { return func(e *Executor) { e.metrics = m } }
func WithClock(now func() time.Time) Option   { return func(e *Executor) { e.now = now } }

// New creates an Executor from cfg.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.preset == "" {
		cfg.preset = "default"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{cfg: cfg, logger: logger, now: time.Now}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Do runs fn, retrying per the configured policy. fn's return value, when
// non-nil, is checked by Config.RetryableResult to allow retrying
// successful-but-unacceptable results.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, Result) {
	start := e.now()

	callCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.TotalTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.TotalTimeout)
		defer cancel()
	}

	var (
		delays   []time.Duration
		lastErr  error
		attempts int
	)

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		e.metrics.RecordRetryAttempt(e.cfg.preset)

		if callCtx.Err() != nil {
			return nil, e.finish(TimedOut, attempts, start, delays, ctx.Err())
		}

		val, err := fn(callCtx)
		resultRejected := false
		if err == nil {
			if e.cfg.RetryableResult != nil && e.cfg.RetryableResult(val) {
				resultRejected = true
				err = errRetryableResult
			} else {
				if e.cfg.OnSuccess != nil {
					e.cfg.OnSuccess(attempts)
				}
				e.metrics.RecordRetryOutcome(e.cfg.preset, string(Success))
				return val, Result{Outcome: Success, Attempts: attempts, Elapsed: e.now().Sub(start), Delays: delays}
			}
		}

		lastErr = err
		if !resultRejected {
			if e.cfg.NonRetryable != nil && e.cfg.NonRetryable(err) {
				return nil, e.finish(Aborted, attempts, start, delays, err)
			}
			if e.cfg.Retryable != nil && !e.cfg.Retryable(err) {
				return nil, e.finish(Aborted, attempts, start, delays, err)
			}
		}

		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := e.delayFor(attempt)
		delays = append(delays, delay)
		if e.cfg.OnRetry != nil {
			e.cfg.OnRetry(attempt, err, delay)
		}
		if err := e.sleep(callCtx, delay); err != nil {
			return nil, e.finish(TimedOut, attempts, start, delays, callCtx.Err())
		}
	}

	return nil, e.finish(Exhausted, attempts, start, delays, lastErr)
}

var errRetryableResult = errors.New("retry: result rejected by RetryableResult predicate")

func (e *Executor) finish(outcome Outcome, attempts int, start time.Time, delays []time.Duration, err error) Result {
	if e.cfg.OnFailure != nil {
		e.cfg.OnFailure(outcome, attempts, err)
	}
	e.metrics.RecordRetryOutcome(e.cfg.preset, string(outcome))
	var finalErr error
	switch outcome {
	case Exhausted:
		finalErr = &ErrExhausted{Attempts: attempts, Cause: err}
	case TimedOut:
		finalErr = ErrTimedOut
	default:
		finalErr = err
	}
	return Result{Outcome: outcome, Attempts: attempts, Elapsed: e.now().Sub(start), Delays: delays, Err: finalErr}
}

// delayFor computes the delay before attempt n+1, 1-indexed on n.
func (e *Executor) delayFor(n int) time.Duration {
	base := float64(e.cfg.BaseDelay)
	var raw float64
	switch e.cfg.Strategy {
	case Constant:
		raw = base
	case Linear:
		raw = base * float64(n)
	case Fibonacci:
		raw = base * float64(fib(n))
	case Exponential:
		fallthrough
	default:
		raw = base * math.Pow(e.cfg.Multiplier, float64(n-1))
	}

	if raw > float64(e.cfg.MaxDelay) {
		raw = float64(e.cfg.MaxDelay)
	}

	if e.cfg.JitterHi > 0 {
		lo, hi := e.cfg.JitterLo, e.cfg.JitterHi
		if hi < lo {
			lo, hi = hi, lo
		}
		factor := lo + rand.Float64()*(hi-lo)
		raw *= factor
	}

	return time.Duration(raw)
}

func fib(n int) int {
	if n <= 0 {
		return 0
	}
	a, b := 0, 1
	for i := 1; i < n; i++ {
		a, b = b, a+b
	}
	return b
}

// Do is a package-level convenience wrapping a fresh Executor built from
// cfg, useful for one-off calls.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) (any, error)) (any, Result) {
	return New(cfg, nil).Do(ctx, fn)
}
