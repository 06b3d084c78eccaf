// Package config loads ShieldKit's primitive configuration from
// defaults, an optional YAML file, and environment variable overrides,
// in that priority order — the same Builder-style Loader the teacher
// repo uses for its own configuration.
package config

import "time"

// Config aggregates the tunables for every ShieldKit primitive a host
// application wires up. Each primitive package defines its own runtime
// types (ratelimit.Rule, circuitbreaker.Config, retry.Config, ...);
// this struct holds the serializable parameters a deployment adjusts,
// which calling code translates into those runtime types at startup.
type Config struct {
	Server      ServerConfig      `yaml:"server" env:"SERVER"`
	Log         LogConfig         `yaml:"log" env:"LOG"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" env:"TELEMETRY"`
	Redis       RedisConfig       `yaml:"redis" env:"REDIS"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" env:"RATE_LIMIT"`
	Breaker     BreakerConfig     `yaml:"circuit_breaker" env:"BREAKER"`
	Retry       RetryConfig       `yaml:"retry" env:"RETRY"`
	Context     ContextConfig     `yaml:"context_window" env:"CONTEXT"`
	Degradation DegradationConfig `yaml:"degradation" env:"DEGRADATION"`
	Session     SessionConfig     `yaml:"session" env:"SESSION"`
	SLO         SLOConfig         `yaml:"slo" env:"SLO"`
	Cost        CostConfig        `yaml:"cost" env:"COST"`
	Alert       AlertConfig       `yaml:"alert" env:"ALERT"`
	Guardrails  GuardrailsConfig  `yaml:"guardrails" env:"GUARDRAILS"`
	Auth        AuthConfig        `yaml:"auth" env:"AUTH"`
}

// ServerConfig configures the HTTP server a host binds ShieldKit's
// middleware chain to.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// LogConfig configures the shared zap logger.
type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Format     string `yaml:"format" env:"FORMAT"` // "json" or "console"
	OutputPath string `yaml:"output_path" env:"OUTPUT_PATH"`
}

// TelemetryConfig configures the OTel SDK. Field names match what
// internal/telemetry.Init reads.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// RedisConfig configures the shared Redis connection backing
// ratelimit.Redis, session.RedisStore, cache.Redis, and store.Redis.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	KeyPrefix    string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// RateLimitConfig configures the default ratelimit.Rule a deployment
// applies; per-endpoint/per-tier overrides are assembled by the host
// from its own route table, not from this struct.
type RateLimitConfig struct {
	Algorithm       string        `yaml:"algorithm" env:"ALGORITHM"` // "sliding_window" or "token_bucket"
	Limit           int           `yaml:"limit" env:"LIMIT"`
	Window          time.Duration `yaml:"window" env:"WINDOW"`
	Capacity        int           `yaml:"capacity" env:"CAPACITY"`
	RefillPerWindow int           `yaml:"refill_per_window" env:"REFILL_PER_WINDOW"`
	Backend         string        `yaml:"backend" env:"BACKEND"` // "memory" or "redis"
}

// BreakerConfig configures a circuitbreaker.Breaker.
type BreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	FailureRateThresh  float64       `yaml:"failure_rate_threshold" env:"FAILURE_RATE_THRESHOLD"`
	RollingWindow      time.Duration `yaml:"rolling_window" env:"ROLLING_WINDOW"`
	MinRequestsInWindow int          `yaml:"min_requests_in_window" env:"MIN_REQUESTS_IN_WINDOW"`
	OpenTimeout        time.Duration `yaml:"open_timeout" env:"OPEN_TIMEOUT"`
	HalfOpenMaxCalls   int           `yaml:"half_open_max_calls" env:"HALF_OPEN_MAX_CALLS"`
}

// RetryConfig configures a retry.Executor.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	Strategy      string        `yaml:"strategy" env:"STRATEGY"` // constant|linear|exponential|fibonacci
	BaseDelay     time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	MaxDelay      time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	TotalTimeout  time.Duration `yaml:"total_timeout" env:"TOTAL_TIMEOUT"`
}

// ContextConfig configures a contextwindow.Manager.
type ContextConfig struct {
	MaxTokens    int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	Strategy     string  `yaml:"strategy" env:"STRATEGY"`
	ReserveRatio float64 `yaml:"reserve_ratio" env:"RESERVE_RATIO"`
}

// DegradationConfig configures a degradation.Chain.
type DegradationConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SessionConfig configures session.Manager and its Store backend.
type SessionConfig struct {
	TTL         time.Duration `yaml:"ttl" env:"TTL"`
	MaxEntries  int           `yaml:"max_entries" env:"MAX_ENTRIES"`
	Backend     string        `yaml:"backend" env:"BACKEND"` // "memory" or "redis"
}

// SLOConfig configures an slo.Tracker.
type SLOConfig struct {
	TargetCompliance float64       `yaml:"target_compliance" env:"TARGET_COMPLIANCE"`
	WindowSize       time.Duration `yaml:"window_size" env:"WINDOW_SIZE"`
	BurnRateFast     float64       `yaml:"burn_rate_fast" env:"BURN_RATE_FAST"`
	BurnRateSlow     float64       `yaml:"burn_rate_slow" env:"BURN_RATE_SLOW"`
}

// CostConfig configures a cost.Tracker's periodic budgets.
type CostConfig struct {
	MinuteBudget float64 `yaml:"minute_budget" env:"MINUTE_BUDGET"`
	HourBudget   float64 `yaml:"hour_budget" env:"HOUR_BUDGET"`
	DayBudget    float64 `yaml:"day_budget" env:"DAY_BUDGET"`
	MonthBudget  float64 `yaml:"month_budget" env:"MONTH_BUDGET"`
	AlertAt      float64 `yaml:"alert_at" env:"ALERT_AT"` // fraction of budget, e.g. 0.8
}

// AlertConfig configures alert.Manager's dedup/rate-limit behavior.
type AlertConfig struct {
	DedupWindow    time.Duration `yaml:"dedup_window" env:"DEDUP_WINDOW"`
	MaxPerMinute   int           `yaml:"max_per_minute" env:"MAX_PER_MINUTE"`
	QueueSize      int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	Workers        int           `yaml:"workers" env:"WORKERS"`
}

// GuardrailsConfig configures guardrails.Validator and
// guardrails.InjectionDetector.
type GuardrailsConfig struct {
	MaxLength          int           `yaml:"max_length" env:"MAX_LENGTH"`
	Strictness         string        `yaml:"strictness" env:"STRICTNESS"` // permissive|standard|strict
	InjectionSensitivity string      `yaml:"injection_sensitivity" env:"INJECTION_SENSITIVITY"`
	InjectionThreshold float64       `yaml:"injection_threshold" env:"INJECTION_THRESHOLD"`
	CacheTTL           time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// AuthConfig configures httpmw.Auth's provider chain.
type AuthConfig struct {
	Providers      []string `yaml:"providers" env:"PROVIDERS"` // "api_key","jwt","iap","oauth2"
	SkipPaths      []string `yaml:"skip_paths" env:"SKIP_PATHS"`
	APIKeyHeader   string   `yaml:"api_key_header" env:"API_KEY_HEADER"`
	AllowQueryKey  bool     `yaml:"allow_query_key" env:"ALLOW_QUERY_KEY"`
	JWT            JWTSettings `yaml:"jwt" env:"JWT"`
}

// JWTSettings is the serializable subset of authn.JWTConfig.
type JWTSettings struct {
	Secret    string        `yaml:"secret" env:"SECRET"`
	PublicKey string        `yaml:"public_key" env:"PUBLIC_KEY"`
	Issuer    string        `yaml:"issuer" env:"ISSUER"`
	Audience  string        `yaml:"audience" env:"AUDIENCE"`
	Leeway    time.Duration `yaml:"leeway" env:"LEEWAY"`
}
