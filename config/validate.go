package config

import (
	"fmt"
	"strings"
)

// Validate checks the Config for internally inconsistent values that
// would make a primitive misbehave rather than fail fast at startup.
func (c *Config) Validate() error {
	var errs []string

	if c.RateLimit.Limit <= 0 && c.RateLimit.Algorithm == "sliding_window" {
		errs = append(errs, "rate_limit.limit must be positive")
	}
	if c.Breaker.FailureRateThresh < 0 || c.Breaker.FailureRateThresh > 1 {
		errs = append(errs, "circuit_breaker.failure_rate_threshold must be between 0 and 1")
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be positive")
	}
	if c.Context.MaxTokens <= 0 {
		errs = append(errs, "context_window.max_tokens must be positive")
	}
	if c.SLO.TargetCompliance <= 0 || c.SLO.TargetCompliance > 1 {
		errs = append(errs, "slo.target_compliance must be between 0 and 1")
	}
	if c.Guardrails.InjectionThreshold < 0 || c.Guardrails.InjectionThreshold > 1 {
		errs = append(errs, "guardrails.injection_threshold must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
