// Package metrics provides internal Prometheus instrumentation shared by
// every ShieldKit primitive. This package is internal and should not be
// imported by external projects; primitives accept a *Collector (or nil)
// at construction instead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds one metric family per ShieldKit primitive, all sharing a
// single namespace.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	rateLimitDecisions *prometheus.CounterVec

	breakerTransitions *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec

	retryAttempts *prometheus.CounterVec
	retryOutcomes *prometheus.CounterVec

	contextTruncations *prometheus.CounterVec
	contextTokens      *prometheus.HistogramVec

	degradationFallbacks *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	sloCompliance *prometheus.GaugeVec
	sloBurnRate   *prometheus.GaugeVec

	costSpend *prometheus.CounterVec

	alertsDispatched *prometheus.CounterVec
	alertsDropped    *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector builds a Collector with one metric family per primitive,
// registered under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total",
		Help: "Total number of HTTP requests handled by ShieldKit middleware.",
	}, []string{"method", "path", "status"})

	c.httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds",
		Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	c.rateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "ratelimit_decisions_total",
		Help: "Rate limiter allow/deny decisions.",
	}, []string{"key_scope", "algorithm", "decision"})

	c.breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "circuitbreaker_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"name", "from", "to"})

	c.breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "circuitbreaker_state",
		Help: "Current circuit breaker state (0=closed,1=half-open,2=open).",
	}, []string{"name"})

	c.retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "retry_attempts_total",
		Help: "Retry attempts performed.",
	}, []string{"preset"})

	c.retryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "retry_outcomes_total",
		Help: "Retry executor terminal outcomes.",
	}, []string{"preset", "outcome"})

	c.contextTruncations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "contextwindow_truncations_total",
		Help: "Context window truncation passes performed, by strategy.",
	}, []string{"strategy"})

	c.contextTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "contextwindow_tokens",
		Help:    "Token count of a conversation after a truncation pass.",
		Buckets: prometheus.ExponentialBuckets(64, 2, 12),
	}, []string{"strategy"})

	c.degradationFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "degradation_fallbacks_total",
		Help: "Graceful degradation fallback invocations, by chain and level.",
	}, []string{"chain", "level", "outcome"})

	c.cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "cache_hits_total", Help: "Cache hits.",
	}, []string{"backend"})

	c.cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "cache_misses_total", Help: "Cache misses.",
	}, []string{"backend"})

	c.sloCompliance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "slo_compliance_state",
		Help: "SLO compliance state (0=compliant,1=at_risk,2=violated).",
	}, []string{"slo"})

	c.sloBurnRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "slo_burn_rate",
		Help: "SLO error budget burn rate.",
	}, []string{"slo"})

	c.costSpend = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "cost_spend_usd_total",
		Help: "Accumulated cost in USD, by model.",
	}, []string{"model"})

	c.alertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "alerts_dispatched_total",
		Help: "Alerts dispatched, by channel and result.",
	}, []string{"channel", "result"})

	c.alertsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "alerts_dropped_total",
		Help: "Alerts dropped before dispatch, by reason.",
	}, []string{"reason"})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *Collector) RecordRateLimitDecision(keyScope, algorithm string, allowed bool) {
	if c == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	c.rateLimitDecisions.WithLabelValues(keyScope, algorithm, decision).Inc()
}

func (c *Collector) RecordBreakerTransition(name, from, to string) {
	if c == nil {
		return
	}
	c.breakerTransitions.WithLabelValues(name, from, to).Inc()
}

func (c *Collector) SetBreakerState(name string, state int) {
	if c == nil {
		return
	}
	c.breakerState.WithLabelValues(name).Set(float64(state))
}

func (c *Collector) RecordRetryAttempt(preset string) {
	if c == nil {
		return
	}
	c.retryAttempts.WithLabelValues(preset).Inc()
}

func (c *Collector) RecordRetryOutcome(preset, outcome string) {
	if c == nil {
		return
	}
	c.retryOutcomes.WithLabelValues(preset, outcome).Inc()
}

func (c *Collector) RecordContextTruncation(strategy string, tokensAfter int) {
	if c == nil {
		return
	}
	c.contextTruncations.WithLabelValues(strategy).Inc()
	c.contextTokens.WithLabelValues(strategy).Observe(float64(tokensAfter))
}

func (c *Collector) RecordDegradationFallback(chain, level, outcome string) {
	if c == nil {
		return
	}
	c.degradationFallbacks.WithLabelValues(chain, level, outcome).Inc()
}

func (c *Collector) RecordCacheHit(backend string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(backend).Inc()
}

func (c *Collector) RecordCacheMiss(backend string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(backend).Inc()
}

func (c *Collector) SetSLOCompliance(slo string, state int) {
	if c == nil {
		return
	}
	c.sloCompliance.WithLabelValues(slo).Set(float64(state))
}

func (c *Collector) SetSLOBurnRate(slo string, rate float64) {
	if c == nil {
		return
	}
	c.sloBurnRate.WithLabelValues(slo).Set(rate)
}

func (c *Collector) RecordCostSpend(model string, cost float64) {
	if c == nil {
		return
	}
	c.costSpend.WithLabelValues(model).Add(cost)
}

func (c *Collector) RecordAlertDispatch(channel, result string) {
	if c == nil {
		return
	}
	c.alertsDispatched.WithLabelValues(channel, result).Inc()
}

func (c *Collector) RecordAlertDropped(reason string) {
	if c == nil {
		return
	}
	c.alertsDropped.WithLabelValues(reason).Inc()
}

func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
