package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/clock"
	"github.com/shieldkit/shieldkit/internal/channel"
	"github.com/shieldkit/shieldkit/internal/metrics"
	"github.com/shieldkit/shieldkit/internal/pool"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	DedupWindow      time.Duration // default 5 minutes
	RateLimitPerMin  int           // 0 disables rate limiting
	Queue            channel.TunableConfig
	Workers          pool.GoroutinePoolConfig
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DedupWindow:     5 * time.Minute,
		RateLimitPerMin: 60,
		Queue:           channel.DefaultTunableConfig(),
		Workers:         pool.DefaultGoroutinePoolConfig(),
	}
}

// Manager routes, dedups, rate-limits, and dispatches Alerts across a
// registered set of Channels, using a bounded queue and worker pool so
// Fire never blocks on slow channel I/O.
type Manager struct {
	mu           sync.Mutex
	channels     map[string]Channel
	rules        []Rule
	lastSeen     map[string]time.Time
	dedupWindow  time.Duration
	rateLimit    int
	windowStart  time.Time
	windowCount  int
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *metrics.Collector

	queue  *channel.TunableChannel[dispatchJob]
	pool   *pool.GoroutinePool
	dispAg sync.Once
}

type dispatchJob struct {
	alert    Alert
	channels []string
}

// NewManager creates a Manager. Call Start to begin dispatching and Stop
// to drain and shut down the worker pool.
func NewManager(cfg ManagerConfig, logger *zap.Logger, m *metrics.Collector) *Manager {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		channels:    make(map[string]Channel),
		lastSeen:    make(map[string]time.Time),
		dedupWindow: cfg.DedupWindow,
		rateLimit:   cfg.RateLimitPerMin,
		clock:       clock.System,
		logger:      logger,
		metrics:     m,
		queue:       channel.NewTunableChannel[dispatchJob](cfg.Queue),
		pool:        pool.NewGoroutinePool(cfg.Workers),
	}
}

// WithClock overrides the injected clock, for deterministic tests.
func (m *Manager) WithClock(c clock.Clock) *Manager {
	m.clock = c
	return m
}

// RegisterChannel adds a notification channel by its own Name().
func (m *Manager) RegisterChannel(c Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[c.Name()] = c
}

// AddRule appends a routing rule, evaluated in order alongside all others;
// every matching rule's channels are unioned into the dispatch set.
func (m *Manager) AddRule(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
}

// Start launches the background dispatch worker that drains the queue and
// sends to channels via the pool.
func (m *Manager) Start(ctx context.Context) {
	m.dispAg.Do(func() {
		go m.dispatchLoop(ctx)
	})
}

func (m *Manager) dispatchLoop(ctx context.Context) {
	for {
		job, err := m.queue.Receive(ctx)
		if err != nil {
			return
		}
		j := job
		_ = m.pool.Submit(ctx, func(ctx context.Context) error {
			m.deliver(j)
			return nil
		})
	}
}

func (m *Manager) deliver(job dispatchJob) {
	m.mu.Lock()
	targets := make([]Channel, 0, len(job.channels))
	for _, name := range job.channels {
		if c, ok := m.channels[name]; ok {
			targets = append(targets, c)
		}
	}
	m.mu.Unlock()

	for _, c := range targets {
		res := c.Send(job.alert)
		if res.Success {
			m.metrics.RecordAlertDispatch(c.Name(), "success")
		} else {
			m.metrics.RecordAlertDispatch(c.Name(), "failure")
			m.logger.Warn("alert dispatch failed",
				zap.String("channel", c.Name()),
				zap.String("alert", job.alert.Name),
				zap.Error(res.Error),
			)
		}
	}
}

// Stop closes the dispatch queue and worker pool, waiting for in-flight
// deliveries to finish.
func (m *Manager) Stop() {
	m.queue.Close()
	m.pool.Close()
}

// matchingChannelsLocked returns the union of channel names from every rule
// that matches alert. If no rules are configured, every registered
// channel is returned.
func (m *Manager) matchingChannelsLocked(a Alert) []string {
	if len(m.rules) == 0 {
		names := make([]string, 0, len(m.channels))
		for name := range m.channels {
			names = append(names, name)
		}
		return names
	}

	seen := make(map[string]bool)
	var out []string
	for _, rule := range m.rules {
		if !rule.matches(a) {
			continue
		}
		for _, name := range rule.ChannelNames {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func (m *Manager) rateLimitedLocked() bool {
	if m.rateLimit <= 0 {
		return false
	}
	now := m.clock.Now()
	if now.Sub(m.windowStart) >= time.Minute {
		m.windowStart = now
		m.windowCount = 0
	}
	if m.windowCount >= m.rateLimit {
		return true
	}
	m.windowCount++
	return false
}

func (m *Manager) expireDedupLocked() {
	now := m.clock.Now()
	for fp, seen := range m.lastSeen {
		if now.Sub(seen) > m.dedupWindow {
			delete(m.lastSeen, fp)
		}
	}
}

// Fire routes and (subject to dedup and rate limiting) enqueues alert for
// dispatch. It returns the channel names the alert was routed to,
// regardless of whether dedup or rate limiting ultimately dropped it; the
// returned bool reports whether the alert was handed to the dispatch
// queue, and does not say why it was dropped.
func (m *Manager) Fire(a Alert) (routed []string, dispatched bool) {
	if a.Timestamp.IsZero() {
		a.Timestamp = m.clock.Now()
	}
	if a.Status == "" {
		a.Status = Firing
	}

	m.mu.Lock()
	m.expireDedupLocked()
	fp := a.Fingerprint()

	routed = m.matchingChannelsLocked(a)

	if _, seen := m.lastSeen[fp]; seen {
		m.mu.Unlock()
		m.metrics.RecordAlertDropped("dedup")
		return routed, false
	}
	if m.rateLimitedLocked() {
		m.mu.Unlock()
		m.metrics.RecordAlertDropped("rate_limit")
		return routed, false
	}
	m.lastSeen[fp] = a.Timestamp
	m.mu.Unlock()

	if len(routed) == 0 {
		return routed, false
	}
	m.queue.TrySend(dispatchJob{alert: a, channels: routed})
	return routed, true
}

// ResolveAlert marks a as resolved and dispatches it, bypassing dedup (a
// resolution must always reach channels even if the firing event was
// recently deduped).
func (m *Manager) ResolveAlert(a Alert) (routed []string, dispatched bool) {
	a.Status = Resolved
	if a.Timestamp.IsZero() {
		a.Timestamp = m.clock.Now()
	}

	m.mu.Lock()
	routed = m.matchingChannelsLocked(a)
	m.mu.Unlock()

	if len(routed) == 0 {
		return routed, false
	}
	m.queue.TrySend(dispatchJob{alert: a, channels: routed})
	return routed, true
}
