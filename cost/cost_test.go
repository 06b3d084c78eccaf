package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/clock"
)

func pricingTable() map[string]Pricing {
	return map[string]Pricing{
		"gpt-4": {InputPer1K: 0.03, OutputPer1K: 0.06, CachedPer1K: 0.015},
	}
}

func TestTracker_RecordComputesCost(t *testing.T) {
	tr := NewTracker(pricingTable(), Pricing{InputPer1K: 0.01, OutputPer1K: 0.02}, 100, Limits{}, nil, nil)
	rec := tr.Record("gpt-4", 1000, 500, 0, "sess", "u1", nil)
	assert.InDelta(t, 0.03+0.03, rec.Cost, 1e-9)
}

func TestTracker_UnknownModelUsesFallback(t *testing.T) {
	tr := NewTracker(pricingTable(), Pricing{InputPer1K: 0.01, OutputPer1K: 0.01}, 100, Limits{}, nil, nil)
	rec := tr.Record("unknown-model", 1000, 1000, 0, "", "", nil)
	assert.InDelta(t, 0.01+0.01, rec.Cost, 1e-9)
}

func TestTracker_SummaryAggregatesByModelAndCostSum(t *testing.T) {
	tr := NewTracker(pricingTable(), Pricing{}, 100, Limits{}, nil, nil)
	tr.Record("gpt-4", 1000, 1000, 0, "", "u1", nil)
	tr.Record("gpt-4", 1000, 1000, 0, "", "u2", nil)

	byModel := tr.SummaryByModel()
	require.Contains(t, byModel, "gpt-4")
	sum := 0.0
	for _, r := range tr.Records() {
		sum += r.Cost
	}
	assert.InDelta(t, sum, byModel["gpt-4"].Cost, 1e-9)
	assert.Equal(t, 2, byModel["gpt-4"].Count)
}

func TestTracker_BudgetAlertFiresOncePerThreshold(t *testing.T) {
	mc := clock.NewMock(time.Now())
	tr := NewTracker(pricingTable(), Pricing{}, 100, Limits{
		Daily: 1.0, AlertThresholds: []float64{0.5, 0.8, 1.0},
	}, nil, nil).WithClock(mc)

	var fired []BudgetType
	tr.OnBudgetAlert(func(bt BudgetType, current, limit float64) {
		fired = append(fired, bt)
	})

	// 1000 input tokens at 0.03 per 1k cost 0.03 per record; 20 records
	// reach 0.60 of the $1 daily budget, crossing only the 50% threshold.
	for i := 0; i < 20; i++ {
		tr.Record("gpt-4", 1000, 0, 0, "", "", nil) // 0.03 each
	}
	require.NotEmpty(t, fired)
	assert.LessOrEqual(t, len(fired), 3, "at most one fire per configured threshold")
	for _, bt := range fired {
		assert.Equal(t, BudgetDaily, bt)
	}
}

func TestTracker_MaxRecordsBounded(t *testing.T) {
	tr := NewTracker(pricingTable(), Pricing{}, 5, Limits{}, nil, nil)
	for i := 0; i < 10; i++ {
		tr.Record("gpt-4", 1, 1, 0, "", "", nil)
	}
	assert.Len(t, tr.Records(), 5)
}

func TestTracker_PruneMonthlyCostRespectsCalendarBoundary(t *testing.T) {
	tr := NewTracker(pricingTable(), Pricing{}, 100, Limits{}, nil, nil)
	mc := clock.NewMock(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	tr.WithClock(mc)
	tr.Record("gpt-4", 1000, 0, 0, "", "", nil)

	tr.PruneMonthlyCost(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.NotZero(t, tr.MonthlyCost("2026-01"), "should not prune the current month")

	tr.PruneMonthlyCost(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Zero(t, tr.MonthlyCost("2026-01"), "should prune months strictly before cutoff's month")
}
