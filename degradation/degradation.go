// Package degradation implements graceful-degradation chains: a primary
// operation backed by an ordered list of fallback providers, gated by an
// optional circuit breaker and a per-step timeout.
package degradation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Provider is a fallback step in a Chain. Execute performs the operation;
// IsHealthy lets a provider opt out before it is attempted.
type Provider interface {
	Name() string
	Execute(ctx context.Context, args any) (any, error)
	IsHealthy(ctx context.Context) bool
}

// BreakerGate is the minimal circuit-breaker surface a Chain needs to
// decide whether the primary is reachable at all, satisfied by
// *circuitbreaker.Breaker without importing it here (avoids a hard
// dependency for callers that don't use breakers).
type BreakerGate interface {
	CanExecute() bool
}

// Reason explains why a Chain fell through to fallback handling.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonCircuitOpen    Reason = "circuit_open"
	ReasonPrimaryTimeout Reason = "primary_timeout"
	ReasonPrimaryFailed  Reason = "primary_failed"
)

// Result is the outcome of running a Chain.
type Result struct {
	Value        any
	UsedFallback bool
	Level        int // 0 = primary succeeded, 1..k = which fallback succeeded
	Reason       Reason
	ProviderName string
	OriginalErr  error
}

// Counters tracks per-chain invocation history.
type Counters struct {
	mu                sync.Mutex
	PrimarySuccesses  int
	PrimaryFailures   int
	FallbackInvoked   map[string]int
}

func newCounters() *Counters {
	return &Counters{FallbackInvoked: make(map[string]int)}
}

func (c *Counters) recordPrimarySuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PrimarySuccesses++
}

func (c *Counters) recordPrimaryFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PrimaryFailures++
}

func (c *Counters) recordFallbackInvoked(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FallbackInvoked[name]++
}

// Snapshot returns a point-in-time copy of the counters.
func (c *Counters) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	invoked := make(map[string]int, len(c.FallbackInvoked))
	for k, v := range c.FallbackInvoked {
		invoked[k] = v
	}
	return Counters{PrimarySuccesses: c.PrimarySuccesses, PrimaryFailures: c.PrimaryFailures, FallbackInvoked: invoked}
}

// ErrAllExhausted is returned when the primary and every fallback fail.
var ErrAllExhausted = errors.New("degradation: primary and all fallbacks exhausted")

// Primary is the main operation a Chain tries first.
type Primary func(ctx context.Context, args any) (any, error)

// Chain runs a Primary under timeout, falling through an ordered list of
// Providers when the primary is unreachable, times out, or errors.
type Chain struct {
	name      string
	primary   Primary
	fallbacks []Provider
	timeout   time.Duration
	breaker   BreakerGate
	counters  *Counters
	logger    *zap.Logger
}

// NewChain creates a named degradation Chain. breaker may be nil to skip
// the circuit-gate check entirely.
func NewChain(name string, primary Primary, fallbacks []Provider, timeout time.Duration, breaker BreakerGate, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chain{
		name:      name,
		primary:   primary,
		fallbacks: fallbacks,
		timeout:   timeout,
		breaker:   breaker,
		counters:  newCounters(),
		logger:    logger,
	}
}

// Name returns the chain's name.
func (c *Chain) Name() string { return c.name }

// Counters returns the chain's invocation counters.
func (c *Chain) Counters() *Counters { return c.counters }

// Execute runs the chain: primary first (unless the breaker is open),
// then fallbacks in order, skipping unhealthy ones.
func (c *Chain) Execute(ctx context.Context, args any) (Result, error) {
	reason := ReasonNone
	var originalErr error

	if c.breaker != nil && !c.breaker.CanExecute() {
		reason = ReasonCircuitOpen
	} else {
		value, err := c.runPrimary(ctx, args)
		if err == nil {
			c.counters.recordPrimarySuccess()
			return Result{Value: value, UsedFallback: false, Level: 0}, nil
		}
		c.counters.recordPrimaryFailure()
		originalErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonPrimaryTimeout
		} else {
			reason = ReasonPrimaryFailed
		}
		c.logger.Warn("degradation: primary failed, falling through",
			zap.String("chain", c.name), zap.String("reason", string(reason)), zap.Error(err))
	}

	for i, provider := range c.fallbacks {
		if !provider.IsHealthy(ctx) {
			continue
		}
		c.counters.recordFallbackInvoked(provider.Name())
		value, err := provider.Execute(ctx, args)
		if err != nil {
			c.logger.Warn("degradation: fallback failed, trying next",
				zap.String("chain", c.name), zap.String("provider", provider.Name()), zap.Error(err))
			continue
		}
		return Result{
			Value:        value,
			UsedFallback: true,
			Level:        i + 1,
			Reason:       reason,
			ProviderName: provider.Name(),
			OriginalErr:  originalErr,
		}, nil
	}

	if originalErr == nil {
		originalErr = fmt.Errorf("circuit open for chain %q", c.name)
	}
	return Result{Reason: reason, OriginalErr: originalErr}, fmt.Errorf("%w: %w (chain %q)", ErrAllExhausted, originalErr, c.name)
}

func (c *Chain) runPrimary(ctx context.Context, args any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := c.primary(ctx, args)
		done <- outcome{value, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.value, o.err
	}
}
