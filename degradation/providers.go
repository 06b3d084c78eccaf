package degradation

import (
	"context"
	"time"

	"github.com/shieldkit/shieldkit/cache"
)

// ConstValue is a Provider that always returns the same pre-computed
// value, useful as a last-resort fallback ("service degraded, here is a
// safe default").
type ConstValue struct {
	name  string
	value any
}

// NewConstValue creates a ConstValue provider.
func NewConstValue(name string, value any) *ConstValue {
	return &ConstValue{name: name, value: value}
}

func (p *ConstValue) Name() string { return p.name }

func (p *ConstValue) Execute(ctx context.Context, args any) (any, error) {
	return p.value, nil
}

func (p *ConstValue) IsHealthy(ctx context.Context) bool { return true }

// KeyBuilder derives a cache key from the args passed to Execute.
type KeyBuilder func(args any) string

// CacheBacked is a Provider that serves the last-known-good cached
// response for a request, keyed by a caller-supplied KeyBuilder.
type CacheBacked struct {
	name    string
	backend cache.Backend
	keyFn   KeyBuilder
	ttl     time.Duration
}

// NewCacheBacked creates a CacheBacked provider.
func NewCacheBacked(name string, backend cache.Backend, keyFn KeyBuilder, ttl time.Duration) *CacheBacked {
	return &CacheBacked{name: name, backend: backend, keyFn: keyFn, ttl: ttl}
}

func (p *CacheBacked) Name() string { return p.name }

func (p *CacheBacked) Execute(ctx context.Context, args any) (any, error) {
	key := p.keyFn(args)
	data, err := p.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (p *CacheBacked) IsHealthy(ctx context.Context) bool { return true }

// StorePrimaryResult caches a successful primary response under the same
// key the provider would look up on its next fallback attempt, letting a
// CacheBacked provider serve the last known good value.
func (p *CacheBacked) StorePrimaryResult(ctx context.Context, args any, value []byte) error {
	return p.backend.Set(ctx, p.keyFn(args), value, p.ttl)
}

// Func wraps an arbitrary callable as a Provider.
type Func struct {
	name      string
	fn        func(ctx context.Context, args any) (any, error)
	healthyFn func(ctx context.Context) bool
}

// NewFunc creates a Func provider. healthyFn may be nil, in which case
// the provider always reports healthy.
func NewFunc(name string, fn func(ctx context.Context, args any) (any, error), healthyFn func(ctx context.Context) bool) *Func {
	return &Func{name: name, fn: fn, healthyFn: healthyFn}
}

func (p *Func) Name() string { return p.name }

func (p *Func) Execute(ctx context.Context, args any) (any, error) {
	return p.fn(ctx, args)
}

func (p *Func) IsHealthy(ctx context.Context) bool {
	if p.healthyFn == nil {
		return true
	}
	return p.healthyFn(ctx)
}

// ModelCaller is the minimal surface an alternative LLM client exposes.
// ShieldKit never implements one: LLM client SDKs are an external
// collaborator per the library's scope.
type ModelCaller interface {
	Call(ctx context.Context, args any) (any, error)
	Healthy(ctx context.Context) bool
}

// AlternativeModel is a Provider that routes to a secondary model client
// when the primary model is degraded.
type AlternativeModel struct {
	name   string
	caller ModelCaller
}

// NewAlternativeModel creates an AlternativeModel provider wrapping caller.
func NewAlternativeModel(name string, caller ModelCaller) *AlternativeModel {
	return &AlternativeModel{name: name, caller: caller}
}

func (p *AlternativeModel) Name() string { return p.name }

func (p *AlternativeModel) Execute(ctx context.Context, args any) (any, error) {
	return p.caller.Call(ctx, args)
}

func (p *AlternativeModel) IsHealthy(ctx context.Context) bool {
	return p.caller.Healthy(ctx)
}
