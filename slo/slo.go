// Package slo tracks service-level objectives as rolling windows of
// good/bad (or numeric) events, computing compliance and error-budget
// burn rate, and notifies observers on state transitions.
package slo

import (
	"math"
	"sync"
	"time"

	"github.com/shieldkit/shieldkit/clock"
	"github.com/shieldkit/shieldkit/internal/metrics"
)

// SLIType names the kind of indicator an SLO measures.
type SLIType string

const (
	Availability SLIType = "availability"
	Latency      SLIType = "latency"
	ErrorRate    SLIType = "error_rate"
	Throughput   SLIType = "throughput"
	Quality      SLIType = "quality"
)

// State classifies an SLO's current compliance.
type State string

const (
	Compliant State = "compliant"
	AtRisk    State = "at_risk"
	Violated  State = "violated"
)

// SLO describes a single objective a Tracker enforces.
type SLO struct {
	Name           string
	SLIType        SLIType
	Target         float64 // percentage for availability/error_rate; raw units otherwise
	WindowSeconds  int
	IsUpperBound   bool // true when higher observed values are worse (Target is a ceiling, e.g. latency)
	BurnRateWindow time.Duration // defaults to 60 minutes
}

type event struct {
	timestamp time.Time
	value     float64
	isGood    bool
}

// Tracker owns the rolling event window for one SLO.
type Tracker struct {
	mu          sync.Mutex
	slo         SLO
	events      []event
	total       int
	good        int
	sumValue    float64
	clock       clock.Clock
	lastState   State
	metrics     *metrics.Collector
}

// NewTracker creates a Tracker for slo.
func NewTracker(s SLO, m *metrics.Collector) *Tracker {
	if s.BurnRateWindow <= 0 {
		s.BurnRateWindow = 60 * time.Minute
	}
	return &Tracker{slo: s, clock: clock.System, lastState: Compliant, metrics: m}
}

// WithClock overrides the injected clock, for deterministic tests.
func (t *Tracker) WithClock(c clock.Clock) *Tracker {
	t.clock = c
	return t
}

func (t *Tracker) cleanupLocked() {
	now := t.clock.Now()
	cutoff := now.Add(-time.Duration(t.slo.WindowSeconds) * time.Second)
	i := 0
	for i < len(t.events) && t.events[i].timestamp.Before(cutoff) {
		t.total--
		if t.events[i].isGood {
			t.good--
		}
		t.sumValue -= t.events[i].value
		i++
	}
	if i > 0 {
		t.events = t.events[i:]
	}
}

// RecordBool records a boolean good/bad event (used for availability).
func (t *Tracker) RecordBool(isGood bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()

	val := 0.0
	if isGood {
		val = 1.0
	}
	t.events = append(t.events, event{timestamp: t.clock.Now(), value: val, isGood: isGood})
	t.total++
	if isGood {
		t.good++
	}
	t.sumValue += val
	t.recordMetricsAndTransitionLocked()
}

// RecordValue records a numeric observation (latency/throughput/quality),
// auto-classifying good/bad against the target using IsUpperBound.
func (t *Tracker) RecordValue(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()

	isGood := v <= t.slo.Target
	if !t.slo.IsUpperBound {
		isGood = v >= t.slo.Target
	}
	t.events = append(t.events, event{timestamp: t.clock.Now(), value: v, isGood: isGood})
	t.total++
	if isGood {
		t.good++
	}
	t.sumValue += v
	t.recordMetricsAndTransitionLocked()
}

func (t *Tracker) recordMetricsAndTransitionLocked() {
	state := t.complianceLocked()
	t.metrics.SetSLOCompliance(t.slo.Name, stateRank(state))
	t.metrics.SetSLOBurnRate(t.slo.Name, t.burnRateLocked())
	t.lastState = state
}

func stateRank(s State) int {
	switch s {
	case Violated:
		return 2
	case AtRisk:
		return 1
	default:
		return 0
	}
}

// CurrentValue returns the SLI's current value per spec §4.7's formulas.
func (t *Tracker) CurrentValue() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()
	return t.currentValueLocked()
}

func (t *Tracker) currentValueLocked() float64 {
	if t.total == 0 {
		return 100
	}
	switch t.slo.SLIType {
	case Availability:
		return float64(t.good) / float64(t.total) * 100
	case ErrorRate:
		return float64(t.total-t.good) / float64(t.total) * 100
	default:
		return t.sumValue / float64(t.total)
	}
}

// ErrorBudgetRemaining returns the percentage of error budget left,
// clamped to [0, 100].
func (t *Tracker) ErrorBudgetRemaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()
	return t.errorBudgetRemainingLocked()
}

func (t *Tracker) errorBudgetRemainingLocked() float64 {
	if t.total == 0 {
		return 100
	}

	switch t.slo.SLIType {
	case Availability:
		allowedBad := float64(t.total) * (100 - t.slo.Target) / 100
		if allowedBad <= 0 {
			if t.total-t.good == 0 {
				return 100
			}
			return 0
		}
		actualBad := float64(t.total - t.good)
		remaining := (allowedBad - actualBad) / allowedBad * 100
		return clamp(remaining, 0, 100)
	default:
		current := t.currentValueLocked()
		// Linear function of current vs target: 100 at target, 0 once
		// current is off target by the target's own magnitude in the bad
		// direction (e.g. twice the target for an upper bound).
		if t.slo.Target == 0 {
			return 100
		}
		gap := (current - t.slo.Target) / t.slo.Target
		if t.slo.IsUpperBound {
			return clamp(100-(gap*100), 0, 100)
		}
		return clamp(100+(gap*100), 0, 100)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BurnRate returns short_error_rate / sustainable_error_rate over the
// SLO's BurnRateWindow.
func (t *Tracker) BurnRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()
	return t.burnRateLocked()
}

func (t *Tracker) burnRateLocked() float64 {
	sustainable := (100 - t.slo.Target) / 100
	cutoff := t.clock.Now().Add(-t.slo.BurnRateWindow)

	var shortTotal, shortBad int
	for _, e := range t.events {
		if e.timestamp.Before(cutoff) {
			continue
		}
		shortTotal++
		if !e.isGood {
			shortBad++
		}
	}
	if shortTotal == 0 {
		return 0
	}
	shortErrorRate := float64(shortBad) / float64(shortTotal)
	if sustainable == 0 {
		if shortErrorRate > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return shortErrorRate / sustainable
}

// Compliance classifies the tracker's current state.
func (t *Tracker) Compliance() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()
	return t.complianceLocked()
}

func (t *Tracker) complianceLocked() State {
	budget := t.errorBudgetRemainingLocked()
	if budget <= 0 {
		return Violated
	}
	if budget <= 20 || t.burnRateLocked() > 1 {
		return AtRisk
	}
	return Compliant
}

// Name returns the tracked SLO's name.
func (t *Tracker) Name() string { return t.slo.Name }
