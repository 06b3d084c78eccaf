package config

import "time"

// DefaultConfig returns a Config with conservative production defaults
// for every section.
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Redis:       DefaultRedisConfig(),
		RateLimit:   DefaultRateLimitConfig(),
		Breaker:     DefaultBreakerConfig(),
		Retry:       DefaultRetryConfig(),
		Context:     DefaultContextConfig(),
		Degradation: DefaultDegradationConfig(),
		Session:     DefaultSessionConfig(),
		SLO:         DefaultSLOConfig(),
		Cost:        DefaultCostConfig(),
		Alert:       DefaultAlertConfig(),
		Guardrails:  DefaultGuardrailsConfig(),
		Auth:        DefaultAuthConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "json"}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     false,
		ServiceName: "shieldkit",
		SampleRate:  0.1,
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "shieldkit:",
	}
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Algorithm: "sliding_window",
		Limit:     100,
		Window:    time.Minute,
		Backend:   "memory",
	}
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		FailureRateThresh:   0.5,
		RollingWindow:       time.Minute,
		MinRequestsInWindow: 10,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxCalls:    3,
	}
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		Strategy:     "exponential",
		BaseDelay:    200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		TotalTimeout: 30 * time.Second,
	}
}

func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxTokens:    8000,
		Strategy:     "priority",
		ReserveRatio: 0.1,
	}
}

func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{Timeout: 10 * time.Second}
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:        30 * time.Minute,
		MaxEntries: 10000,
		Backend:    "memory",
	}
}

func DefaultSLOConfig() SLOConfig {
	return SLOConfig{
		TargetCompliance: 0.999,
		WindowSize:       30 * 24 * time.Hour,
		BurnRateFast:     14.4,
		BurnRateSlow:     6,
	}
}

func DefaultCostConfig() CostConfig {
	return CostConfig{AlertAt: 0.8}
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		DedupWindow:  5 * time.Minute,
		MaxPerMinute: 10,
		QueueSize:    256,
		Workers:      4,
	}
}

func DefaultGuardrailsConfig() GuardrailsConfig {
	return GuardrailsConfig{
		MaxLength:            32000,
		Strictness:           "standard",
		InjectionSensitivity: "standard",
		InjectionThreshold:   0.7,
		CacheTTL:             5 * time.Minute,
	}
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Providers:    []string{"api_key"},
		SkipPaths:    []string{"/health", "/live", "/ready", "/startup"},
		APIKeyHeader: "X-API-Key",
	}
}
