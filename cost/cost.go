// Package cost tracks per-model LLM spend: append-only usage records,
// daily/monthly aggregates, and threshold-crossing budget alerts.
package cost

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/clock"
	"github.com/shieldkit/shieldkit/internal/metrics"
)

// Pricing is the per-1k-token price for one model.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
	CachedPer1K float64
}

// UsageRecord is one append-only accounting entry.
type UsageRecord struct {
	Timestamp     time.Time
	Model         string
	InputTokens   int
	OutputTokens  int
	CachedTokens  int
	Cost          float64
	SessionID     string
	UserID        string
	Metadata      map[string]any
}

// BudgetType names a budget dimension checked on every record.
type BudgetType string

const (
	BudgetDaily        BudgetType = "daily"
	BudgetMonthly      BudgetType = "monthly"
	BudgetPerUserDaily BudgetType = "per_user_daily"
)

// BudgetAlertObserver is invoked once per newly-crossed threshold.
type BudgetAlertObserver func(budgetType BudgetType, current, limit float64)

// Limits configures the active budgets; zero disables a dimension.
type Limits struct {
	Daily            float64
	Monthly          float64
	PerUserDaily     float64
	AlertThresholds  []float64 // fractions of limit, e.g. [0.5, 0.8, 1.0]
}

// Tracker accumulates usage and cost.
type Tracker struct {
	mu             sync.Mutex
	pricing        map[string]Pricing
	fallback       Pricing
	maxRecords     int
	records        []UsageRecord
	dailyCost      map[string]float64 // YYYY-MM-DD
	monthlyCost    map[string]float64 // YYYY-MM
	perUserDaily   map[string]float64 // userID|YYYY-MM-DD
	limits         Limits
	lastCrossed    map[BudgetType]float64 // highest crossed threshold per type
	observers      []BudgetAlertObserver
	clock          clock.Clock
	logger         *zap.Logger
	metrics        *metrics.Collector
}

// NewTracker creates a cost Tracker.
func NewTracker(pricing map[string]Pricing, fallback Pricing, maxRecords int, limits Limits, logger *zap.Logger, m *metrics.Collector) *Tracker {
	if maxRecords <= 0 {
		maxRecords = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		pricing:      pricing,
		fallback:     fallback,
		maxRecords:   maxRecords,
		dailyCost:    make(map[string]float64),
		monthlyCost:  make(map[string]float64),
		perUserDaily: make(map[string]float64),
		limits:       limits,
		lastCrossed:  make(map[BudgetType]float64),
		clock:        clock.System,
		logger:       logger,
		metrics:      m,
	}
}

// WithClock overrides the injected clock, for deterministic tests.
func (t *Tracker) WithClock(c clock.Clock) *Tracker {
	t.clock = c
	return t
}

// OnBudgetAlert registers an observer invoked once per newly-crossed
// threshold per budget dimension.
func (t *Tracker) OnBudgetAlert(fn BudgetAlertObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

func (t *Tracker) priceFor(model string) Pricing {
	if p, ok := t.pricing[model]; ok {
		return p
	}
	t.logger.Warn("cost: unknown model, using fallback pricing", zap.String("model", model))
	return t.fallback
}

// Record accounts for one usage event, computing its cost and checking
// budgets. Returns the computed UsageRecord.
func (t *Tracker) Record(model string, inputTokens, outputTokens, cachedTokens int, sessionID, userID string, metadata map[string]any) UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	price := t.priceFor(model)
	cost := float64(inputTokens)/1000*price.InputPer1K +
		float64(outputTokens)/1000*price.OutputPer1K +
		float64(cachedTokens)/1000*price.CachedPer1K

	now := t.clock.Now()
	rec := UsageRecord{
		Timestamp: now, Model: model,
		InputTokens: inputTokens, OutputTokens: outputTokens, CachedTokens: cachedTokens,
		Cost: cost, SessionID: sessionID, UserID: userID, Metadata: metadata,
	}

	t.records = append(t.records, rec)
	if len(t.records) > t.maxRecords {
		t.records = t.records[len(t.records)-t.maxRecords:]
	}

	dayKey := now.Format("2006-01-02")
	monthKey := now.Format("2006-01")
	t.dailyCost[dayKey] += cost
	t.monthlyCost[monthKey] += cost
	if userID != "" {
		t.perUserDaily[userID+"|"+dayKey] += cost
	}

	t.metrics.RecordCostSpend(model, cost)
	t.checkBudgetsLocked(dayKey, monthKey, userID)
	return rec
}

func (t *Tracker) checkBudgetsLocked(dayKey, monthKey, userID string) {
	if t.limits.Daily > 0 {
		t.checkOneBudgetLocked(BudgetDaily, t.dailyCost[dayKey], t.limits.Daily)
	}
	if t.limits.Monthly > 0 {
		t.checkOneBudgetLocked(BudgetMonthly, t.monthlyCost[monthKey], t.limits.Monthly)
	}
	if t.limits.PerUserDaily > 0 && userID != "" {
		t.checkOneBudgetLocked(BudgetPerUserDaily, t.perUserDaily[userID+"|"+dayKey], t.limits.PerUserDaily)
	}
}

func (t *Tracker) checkOneBudgetLocked(bt BudgetType, current, limit float64) {
	ratio := current / limit
	var crossed float64 = -1
	for _, threshold := range t.limits.AlertThresholds {
		if ratio >= threshold && threshold > t.lastCrossed[bt] {
			crossed = threshold
		}
	}
	if crossed < 0 {
		return
	}
	t.lastCrossed[bt] = crossed
	for _, obs := range t.observers {
		obs(bt, current, limit)
	}
}

// DailyCost returns the accumulated cost for YYYY-MM-DD key day.
func (t *Tracker) DailyCost(day string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dailyCost[day]
}

// MonthlyCost returns the accumulated cost for YYYY-MM key month.
func (t *Tracker) MonthlyCost(month string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monthlyCost[month]
}

// Summary aggregates total cost and token counts grouped by a key
// function (e.g. by model or by user).
type Summary struct {
	Cost         float64
	InputTokens  int
	OutputTokens int
	CachedTokens int
	Count        int
}

// SummaryByModel groups all retained records by model.
func (t *Tracker) SummaryByModel() map[string]Summary {
	return t.summaryBy(func(r UsageRecord) string { return r.Model })
}

// SummaryByUser groups all retained records by user ID.
func (t *Tracker) SummaryByUser() map[string]Summary {
	return t.summaryBy(func(r UsageRecord) string { return r.UserID })
}

func (t *Tracker) summaryBy(keyFn func(UsageRecord) string) map[string]Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Summary)
	for _, r := range t.records {
		key := keyFn(r)
		s := out[key]
		s.Cost += r.Cost
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.CachedTokens += r.CachedTokens
		s.Count++
		out[key] = s
	}
	return out
}

// Records returns a copy of all retained usage records.
func (t *Tracker) Records() []UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]UsageRecord, len(t.records))
	copy(out, t.records)
	return out
}

func monthKeyAfter(month string) (string, error) {
	d, err := time.Parse("2006-01", month)
	if err != nil {
		return "", fmt.Errorf("cost: invalid month key %q: %w", month, err)
	}
	next := time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return next.Format("2006-01"), nil
}

// PruneMonthlyCost drops every monthly aggregate whose key's following
// month is on or before cutoff's month, using true calendar-month
// boundaries rather than a fixed day count.
func (t *Tracker) PruneMonthlyCost(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoffKey := cutoff.Format("2006-01")
	for month := range t.monthlyCost {
		next, err := monthKeyAfter(month)
		if err != nil {
			continue
		}
		if next <= cutoffKey {
			delete(t.monthlyCost, month)
		}
	}
}
