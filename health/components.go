package health

import (
	"context"

	"github.com/shieldkit/shieldkit/circuitbreaker"
)

// FuncComponent wraps a check function as a Component.
type FuncComponent struct {
	name string
	fn   func(ctx context.Context) (Status, string)
}

// NewFuncComponent creates a Component from fn.
func NewFuncComponent(name string, fn func(ctx context.Context) (Status, string)) *FuncComponent {
	return &FuncComponent{name: name, fn: fn}
}

func (c *FuncComponent) Name() string { return c.name }

func (c *FuncComponent) Check(ctx context.Context) (Status, string) {
	return c.fn(ctx)
}

// BreakerComponent reports DEGRADED while a circuitbreaker.Breaker is
// open or half-open (the downstream it guards is known to be failing),
// and HEALTHY while closed.
type BreakerComponent struct {
	breaker *circuitbreaker.Breaker
}

// NewBreakerComponent wraps breaker as a health Component.
func NewBreakerComponent(breaker *circuitbreaker.Breaker) *BreakerComponent {
	return &BreakerComponent{breaker: breaker}
}

func (c *BreakerComponent) Name() string { return c.breaker.Name() }

func (c *BreakerComponent) Check(context.Context) (Status, string) {
	switch c.breaker.State() {
	case circuitbreaker.Closed:
		return Healthy, "circuit closed"
	case circuitbreaker.HalfOpen:
		return Degraded, "circuit half-open, probing recovery"
	default:
		return Degraded, "circuit open"
	}
}
