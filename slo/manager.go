package slo

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/internal/metrics"
)

// TransitionObserver is invoked when a tracker's compliance state changes
// into AtRisk or Violated (never on every event, and never on recovery
// back to Compliant).
type TransitionObserver func(name string, from, to State)

// Manager owns a name-to-Tracker map and fires observers on state
// transitions into AtRisk/Violated.
type Manager struct {
	mu        sync.RWMutex
	trackers  map[string]*Tracker
	observers []TransitionObserver
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewManager creates an empty Manager.
func NewManager(logger *zap.Logger, m *metrics.Collector) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{trackers: make(map[string]*Tracker), logger: logger, metrics: m}
}

// OnTransition registers an observer fired on AtRisk/Violated transitions.
func (m *Manager) OnTransition(fn TransitionObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Register adds a tracker for slo s, returning its Tracker.
func (m *Manager) Register(s SLO) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := NewTracker(s, m.metrics)
	m.trackers[s.Name] = t
	return t
}

// Tracker returns the tracker registered under name, or nil.
func (m *Manager) Tracker(name string) *Tracker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trackers[name]
}

// RecordBool records a boolean event against name's tracker and notifies
// observers if this caused a transition into AtRisk or Violated.
func (m *Manager) RecordBool(name string, isGood bool) {
	t := m.Tracker(name)
	if t == nil {
		return
	}
	before := t.Compliance()
	t.RecordBool(isGood)
	m.notifyIfTransitioned(name, before, t.Compliance())
}

// RecordValue records a numeric event against name's tracker and notifies
// observers if this caused a transition into AtRisk or Violated.
func (m *Manager) RecordValue(name string, v float64) {
	t := m.Tracker(name)
	if t == nil {
		return
	}
	before := t.Compliance()
	t.RecordValue(v)
	m.notifyIfTransitioned(name, before, t.Compliance())
}

func (m *Manager) notifyIfTransitioned(name string, before, after State) {
	if before == after {
		return
	}
	if after != AtRisk && after != Violated {
		return
	}
	m.logger.Warn("slo transitioned",
		zap.String("slo", name),
		zap.String("from", string(before)),
		zap.String("to", string(after)),
	)
	m.mu.RLock()
	observers := append([]TransitionObserver(nil), m.observers...)
	m.mu.RUnlock()
	for _, obs := range observers {
		obs(name, before, after)
	}
}

// All returns every registered tracker name.
func (m *Manager) All() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.trackers))
	for name := range m.trackers {
		names = append(names, name)
	}
	return names
}
