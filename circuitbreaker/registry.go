package circuitbreaker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/internal/metrics"
)

// Registry is a name→Breaker map with get-or-create semantics; concurrent
// get-or-create of the same name always returns the same instance.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewRegistry creates a Registry whose breakers share one default Config
// unless overridden per-name with GetOrCreateWithConfig.
func NewRegistry(defaultCfg Config, logger *zap.Logger, m *metrics.Collector) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      defaultCfg,
		logger:   logger,
		metrics:  m,
	}
}

// GetOrCreate returns the named breaker, creating it with the registry's
// default config on first access.
func (r *Registry) GetOrCreate(name string) *Breaker {
	return r.GetOrCreateWithConfig(name, r.cfg)
}

// GetOrCreateWithConfig is like GetOrCreate but uses cfg if the breaker does
// not yet exist; an existing breaker's config is left untouched.
func (r *Registry) GetOrCreateWithConfig(name string, cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, cfg, r.logger, WithMetrics(r.metrics))
	r.breakers[name] = b
	return b
}

// Get returns the named breaker if it has been created.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Open lists the names of all currently open breakers.
func (r *Registry) Open() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var open []string
	for name, b := range r.breakers {
		if b.State() == Open {
			open = append(open, name)
		}
	}
	return open
}

// AllMetrics returns the current state of every registered breaker.
func (r *Registry) AllMetrics() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}

// ResetAll resets every registered breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}

// Default is the process-wide breaker registry, a documented singleton per
// spec §9 ("global state") — host applications should prefer explicit
// construction via NewRegistry and only fall back to Default when no
// natural place exists to thread a registry through.
var Default = NewRegistry(DefaultConfig(), zap.NewNop(), nil)
