package channels

import (
	"github.com/shieldkit/shieldkit/alert"
	"github.com/shieldkit/shieldkit/internal/metrics"
)

// Metrics emits a time-series point for every alert it receives instead
// of notifying a human, letting alert volume itself be graphed.
type Metrics struct {
	collector *metrics.Collector
}

// NewMetrics creates a Metrics channel recording onto collector.
func NewMetrics(collector *metrics.Collector) *Metrics {
	return &Metrics{collector: collector}
}

func (m *Metrics) Name() string { return "metrics" }

func (m *Metrics) Send(a alert.Alert) alert.Result {
	m.collector.RecordAlertDispatch("metrics", string(a.Severity))
	return alert.Result{Success: true, Channel: m.Name()}
}
