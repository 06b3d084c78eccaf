// Package config loads and validates the tunables every ShieldKit
// primitive needs at startup: rate limiting, circuit breaking, retry,
// context window budgets, degradation timeouts, session TTLs, SLO
// targets, cost budgets, alert fan-out, guardrails, and auth provider
// wiring — assembled from defaults, an optional YAML file, and
// environment variable overrides, in that priority order.
package config
