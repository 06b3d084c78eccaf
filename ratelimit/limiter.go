package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Algorithm selects which check a Limiter performs against its Backend.
type Algorithm string

const (
	SlidingWindow Algorithm = "sliding_window"
	TokenBucket   Algorithm = "token_bucket"
	FixedWindow   Algorithm = "fixed_window"
	LeakyBucket   Algorithm = "leaky_bucket"
)

// Rule configures one Limiter instance.
type Rule struct {
	Algorithm Algorithm
	Limit     int           // sliding/fixed window: max events per Window
	Window    time.Duration // window size for sliding/fixed window; refill/leak period for token/leaky bucket
	Capacity  int           // token/leaky bucket: bucket size
	Refill    int           // token bucket: tokens added per Window; leaky bucket: units leaked per Window
}

// Limiter binds a Rule to a Backend and a key namespace.
type Limiter struct {
	backend Backend
	rule    Rule
	prefix  string
}

// NewLimiter creates a Limiter enforcing rule against backend. prefix
// namespaces this limiter's keys away from other limiters sharing the
// same backend.
func NewLimiter(backend Backend, rule Rule, prefix string) *Limiter {
	return &Limiter{backend: backend, rule: rule, prefix: prefix}
}

// Check evaluates one request identified by key (caller IP, API key,
// tenant ID, etc.) against the limiter's Rule.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	fullKey := l.prefix + ":" + key
	switch l.rule.Algorithm {
	case TokenBucket:
		return l.backend.CheckTokenBucket(ctx, fullKey, l.rule.Capacity, l.rule.Refill, l.rule.Window, 1)
	case FixedWindow:
		return l.backend.CheckFixedWindow(ctx, fullKey, l.rule.Limit, l.rule.Window)
	case LeakyBucket:
		return l.backend.CheckLeakyBucket(ctx, fullKey, l.rule.Capacity, l.rule.Refill, l.rule.Window, 1)
	default:
		return l.backend.CheckSlidingWindow(ctx, fullKey, l.rule.Limit, l.rule.Window)
	}
}

// TieredLimiter selects a sub-Limiter by tier name (e.g. "free",
// "pro", "enterprise"). Tiers share no counters when each tier's
// Limiter is built with its own key prefix, so a caller moved between
// tiers starts with a fresh window rather than inheriting exhausted
// quota.
type TieredLimiter struct {
	tiers   map[string]*Limiter
	fallback *Limiter
}

// NewTieredLimiter creates a TieredLimiter. fallback is used for any tier
// name not present in tiers; it may be nil, in which case Check for an
// unknown tier returns an error.
func NewTieredLimiter(tiers map[string]*Limiter, fallback *Limiter) *TieredLimiter {
	return &TieredLimiter{tiers: tiers, fallback: fallback}
}

// Check evaluates key against the Limiter registered for tier.
func (t *TieredLimiter) Check(ctx context.Context, tier, key string) (Result, error) {
	l, ok := t.tiers[tier]
	if !ok {
		l = t.fallback
	}
	if l == nil {
		return Result{}, fmt.Errorf("ratelimit: no limiter configured for tier %q", tier)
	}
	return l.Check(ctx, key)
}

// EndpointRule pairs a path pattern (exact path, or a "/prefix/*" glob)
// with the Limiter that applies to requests matching it.
type EndpointRule struct {
	Pattern string
	Limiter *Limiter
}

// EndpointLimiter selects a sub-Limiter by path pattern, falling back to
// a default limiter for unmatched paths. As with TieredLimiter, matched
// endpoints share no counters with each other or with the default when
// their Limiters use distinct key prefixes.
type EndpointLimiter struct {
	rules    []EndpointRule
	fallback *Limiter
}

// NewEndpointLimiter creates an EndpointLimiter. Rules are evaluated in
// order; the first match wins. fallback may be nil, in which case
// unmatched paths are not limited (Check returns Allowed: true).
func NewEndpointLimiter(rules []EndpointRule, fallback *Limiter) *EndpointLimiter {
	return &EndpointLimiter{rules: rules, fallback: fallback}
}

func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == path
}

// Check evaluates key against the Limiter whose pattern matches path.
func (e *EndpointLimiter) Check(ctx context.Context, path, key string) (Result, error) {
	for _, r := range e.rules {
		if matchPattern(r.Pattern, path) {
			return r.Limiter.Check(ctx, key)
		}
	}
	if e.fallback == nil {
		return Result{Allowed: true}, nil
	}
	return e.fallback.Check(ctx, key)
}
