// Package circuitbreaker implements a three-state circuit breaker with
// rolling-window failure accounting and automatic recovery probing.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/internal/metrics"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned by Execute/ExecuteWithResult when the breaker is open.
	ErrOpen = errors.New("circuitbreaker: circuit open")
	// ErrTooManyHalfOpenProbes is returned when half-open has already
	// admitted its single probe and another call arrives concurrently.
	ErrTooManyHalfOpenProbes = errors.New("circuitbreaker: too many calls while half-open")
)

// Config configures a Breaker.
type Config struct {
	// FailureThreshold trips the breaker after this many consecutive
	// failures (closed state).
	FailureThreshold int
	// FailureRateThreshold, if > 0, also trips the breaker once the
	// rolling window is full and the failure rate meets or exceeds it
	// (0..1).
	FailureRateThreshold float64
	// WindowSize bounds the rolling outcome history.
	WindowSize int
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// SuccessThreshold successes in half-open close the breaker.
	SuccessThreshold int
	// CallTimeout bounds each Execute call; zero disables the timeout.
	CallTimeout time.Duration
	// ExcludedErrors reports true for errors that must not affect the
	// breaker's counters at all (e.g. caller-side validation errors).
	ExcludedErrors func(error) bool
	// OnStateChange is invoked (async) on every transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		WindowSize:       20,
		OpenTimeout:      30 * time.Second,
		SuccessThreshold: 2,
		CallTimeout:      10 * time.Second,
	}
}

// Breaker is a single named circuit breaker instance.
type Breaker struct {
	name    string
	cfg     Config
	clock   func() time.Time
	logger  *zap.Logger
	metrics *metrics.Collector

	mu             sync.Mutex
	state          State
	window         []bool // true = success
	windowPos      int
	windowLen      int
	consecutiveFail int
	halfOpenCalls  int
	halfOpenOK     int
	openedAt       time.Time
	rejectedCount  int64
}

// Option configures a Breaker at construction.
type Option func(*Breaker)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.clock = now }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(b *Breaker) { b.metrics = m }
}

// New creates a named Breaker.
func New(name string, cfg Config, logger *zap.Logger, opts ...Option) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		clock:  time.Now,
		logger: logger.With(zap.String("breaker", name)),
		window: make([]bool, cfg.WindowSize),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// CanExecute reports whether a call may proceed, transitioning open→half-open
// when the timeout has elapsed.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canExecuteLocked()
}

func (b *Breaker) canExecuteLocked() bool {
	switch b.state {
	case Closed:
		return true
	case Open:
		if b.clock().Sub(b.openedAt) >= b.cfg.OpenTimeout {
			b.setStateLocked(HalfOpen)
			b.halfOpenCalls = 0
			b.halfOpenOK = 0
			b.halfOpenCalls++
			return true
		}
		b.rejectedCount++
		return false
	case HalfOpen:
		if b.halfOpenCalls >= 1 {
			// only one probe admitted at a time
			return false
		}
		b.halfOpenCalls++
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushOutcomeLocked(true)

	switch b.state {
	case Closed:
		b.consecutiveFail = 0
	case HalfOpen:
		b.halfOpenOK++
		if b.halfOpenOK >= b.cfg.SuccessThreshold {
			b.setStateLocked(Closed)
			b.consecutiveFail = 0
			b.halfOpenCalls = 0
			b.halfOpenOK = 0
		} else {
			// probe finished; admit the next one
			b.halfOpenCalls = 0
		}
	}
}

// RecordFailure records a failed call outcome. Errors for which
// cfg.ExcludedErrors returns true must not be passed here at all — callers
// should check ExcludedErrors before calling RecordFailure.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushOutcomeLocked(false)
	b.consecutiveFail++

	switch b.state {
	case Closed:
		if b.consecutiveFail >= b.cfg.FailureThreshold || b.rateTrippedLocked() {
			b.setStateLocked(Open)
		}
	case HalfOpen:
		b.setStateLocked(Open)
		b.halfOpenCalls = 0
		b.halfOpenOK = 0
	}
}

func (b *Breaker) rateTrippedLocked() bool {
	if b.cfg.FailureRateThreshold <= 0 || b.windowLen < len(b.window) {
		return false
	}
	failures := 0
	for _, ok := range b.window {
		if !ok {
			failures++
		}
	}
	return float64(failures)/float64(len(b.window)) >= b.cfg.FailureRateThreshold
}

func (b *Breaker) pushOutcomeLocked(success bool) {
	if len(b.window) == 0 {
		return
	}
	b.window[b.windowPos] = success
	b.windowPos = (b.windowPos + 1) % len(b.window)
	if b.windowLen < len(b.window) {
		b.windowLen++
	}
}

func (b *Breaker) setStateLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == Open {
		b.openedAt = b.clock()
	}
	b.metrics.SetBreakerState(b.name, int(to))
	b.metrics.RecordBreakerTransition(b.name, from.String(), to.String())
	b.logger.Info("circuit state changed", zap.String("from", from.String()), zap.String("to", to.String()))
	if b.cfg.OnStateChange != nil {
		cb, name := b.cfg.OnStateChange, b.name
		go func() { cb(name, from, to) }()
	}
}

// Reset forces the breaker back to closed, clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(Closed)
	b.consecutiveFail = 0
	b.halfOpenCalls = 0
	b.halfOpenOK = 0
	b.windowLen = 0
	b.windowPos = 0
}

// Execute decorates fn with the breaker's can-execute/record protocol and an
// optional per-call timeout.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// ExecuteWithResult is the result-returning form of Execute.
func (b *Breaker) ExecuteWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	b.mu.Lock()
	allowed := b.canExecuteLocked()
	halfOpen := b.state == HalfOpen
	b.mu.Unlock()
	if !allowed {
		if halfOpen {
			return nil, fmt.Errorf("%s: %w", b.name, ErrTooManyHalfOpenProbes)
		}
		return nil, fmt.Errorf("%s: %w", b.name, ErrOpen)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if b.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.cfg.CallTimeout)
		defer cancel()
	}

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(callCtx)
		done <- outcome{val, err}
	}()

	select {
	case <-callCtx.Done():
		b.RecordFailure()
		return nil, fmt.Errorf("%s: %w", b.name, callCtx.Err())
	case o := <-done:
		if o.err != nil && b.cfg.ExcludedErrors != nil && b.cfg.ExcludedErrors(o.err) {
			return o.val, o.err
		}
		if o.err != nil {
			b.RecordFailure()
		} else {
			b.RecordSuccess()
		}
		return o.val, o.err
	}
}
