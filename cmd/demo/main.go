// Command demo wires every ShieldKit primitive into a single runnable
// HTTP server: rate limiting, circuit breaking, retries, context window
// budgeting, graceful degradation, sessions, SLO tracking, cost
// accounting, alert fan-out, guardrails, and authentication, behind the
// httpmw middleware chain and health package's endpoints.
//
// Usage:
//
//	demo serve                     # start the server
//	demo serve --config path.yaml  # load a config file
//	demo version                   # print version info
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shieldkit/shieldkit/alert"
	"github.com/shieldkit/shieldkit/alert/channels"
	"github.com/shieldkit/shieldkit/authn"
	"github.com/shieldkit/shieldkit/circuitbreaker"
	"github.com/shieldkit/shieldkit/config"
	"github.com/shieldkit/shieldkit/contextwindow"
	"github.com/shieldkit/shieldkit/cost"
	"github.com/shieldkit/shieldkit/degradation"
	"github.com/shieldkit/shieldkit/guardrails"
	"github.com/shieldkit/shieldkit/health"
	"github.com/shieldkit/shieldkit/httpmw"
	"github.com/shieldkit/shieldkit/internal/metrics"
	"github.com/shieldkit/shieldkit/internal/telemetry"
	"github.com/shieldkit/shieldkit/ratelimit"
	"github.com/shieldkit/shieldkit/retry"
	"github.com/shieldkit/shieldkit/session"
	"github.com/shieldkit/shieldkit/slo"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ShieldKit demo - AI request hardening middleware

Usage:
  demo <command> [options]

Commands:
  serve     Start the demo server
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)`)
}

func printVersion() {
	fmt.Printf("shieldkit-demo %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting shieldkit demo",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	if otelProviders != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelProviders.Shutdown(ctx)
		}()
	}

	collector := metrics.NewCollector("shieldkit", logger)

	primitives := buildApp(cfg, logger, collector)

	mux := http.NewServeMux()
	registerHealthRoutes(mux, primitives.health)
	mux.Handle("/v1/guarded", primitives.guardedHandler())

	handler := httpmw.Chain(mux,
		httpmw.Recovery(logger),
		httpmw.RequestID(),
		httpmw.SecurityHeaders(),
		httpmw.CORS(cfg.Server.CORSOrigins),
		httpmw.RequestLogger(logger),
		httpmw.Tracing(),
		httpmw.Metrics(collector),
		httpmw.RateLimit(primitives.limiter, nil),
		httpmw.Auth(primitives.authChain, cfg.Auth.SkipPaths),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	primitives.alerts.Start(context.Background())
	defer primitives.alerts.Stop()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	primitives.health.MarkStartupComplete()

	waitForShutdown(srv, cfg.Server.ShutdownTimeout, logger)
	logger.Info("shieldkit demo stopped")
}

// app bundles the constructed primitives the demo HTTP handlers use.
type app struct {
	limiter   *ratelimit.Limiter
	breaker   *circuitbreaker.Breaker
	retrier   *retry.Executor
	ctxMgr    *contextwindow.Manager
	degrader  *degradation.Chain
	sessions  *session.Manager
	slo       *slo.Manager
	cost      *cost.Tracker
	alerts    *alert.Manager
	guardian  *guardrails.Chain
	authChain authn.Chain
	health    *health.Registry
}

func buildApp(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) *app {
	rlBackend := ratelimit.NewMemory()
	rule := ratelimit.Rule{
		Algorithm: ratelimit.SlidingWindow,
		Limit:     cfg.RateLimit.Limit,
		Window:    cfg.RateLimit.Window,
		Capacity:  cfg.RateLimit.Capacity,
		Refill:    cfg.RateLimit.RefillPerWindow,
	}
	if cfg.RateLimit.Algorithm == "token_bucket" {
		rule.Algorithm = ratelimit.TokenBucket
	}
	limiter := ratelimit.NewLimiter(rlBackend, rule, "shieldkit")

	breaker := circuitbreaker.New("llm-primary", circuitbreaker.Config{
		FailureThreshold:     cfg.Breaker.FailureThreshold,
		FailureRateThreshold: cfg.Breaker.FailureRateThresh,
		WindowSize:           100,
		OpenTimeout:          cfg.Breaker.OpenTimeout,
		SuccessThreshold:     cfg.Breaker.HalfOpenMaxCalls,
	}, logger)

	retryStrategy := retry.Exponential
	switch cfg.Retry.Strategy {
	case "constant":
		retryStrategy = retry.Constant
	case "linear":
		retryStrategy = retry.Linear
	case "fibonacci":
		retryStrategy = retry.Fibonacci
	}
	retrier := retry.New(retry.Config{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Strategy:     retryStrategy,
		Multiplier:   2.0,
		JitterLo:     0.8,
		JitterHi:     1.2,
		TotalTimeout: cfg.Retry.TotalTimeout,
	}, logger)

	ctxStrategy := contextwindow.Priority
	switch cfg.Context.Strategy {
	case "fifo":
		ctxStrategy = contextwindow.FIFO
	case "lifo":
		ctxStrategy = contextwindow.LIFO
	case "sliding_window":
		ctxStrategy = contextwindow.SlidingWindow
	case "summarize":
		ctxStrategy = contextwindow.Summarize
	}
	ctxMgr := contextwindow.NewManager(contextwindow.ManagerConfig{
		TargetTokens: cfg.Context.MaxTokens,
		Strategy:     ctxStrategy,
	}, logger, collector)

	fallback := degradation.NewConstValue("static-fallback", map[string]string{
		"notice": "primary provider unavailable, serving a cached response",
	})
	degrader := degradation.NewChain("chat-completion", func(ctx context.Context, args any) (any, error) {
		return nil, fmt.Errorf("demo: primary provider not wired, this is a middleware showcase")
	}, []degradation.Provider{fallback}, cfg.Degradation.Timeout, breaker, logger)

	store := session.NewMemoryStore(cfg.Session.TTL, logger)
	counter := contextwindow.NewTikTokenCounter().ForModel("gpt-4o")
	sessions := session.NewManager(store, ctxMgr, counter, logger)

	sloManager := slo.NewManager(logger, collector)
	sloManager.Register(slo.SLO{
		Name:          "demo-availability",
		SLIType:       slo.Availability,
		Target:        cfg.SLO.TargetCompliance * 100,
		WindowSeconds: int(cfg.SLO.WindowSize.Seconds()),
	})

	pricing := map[string]cost.Pricing{
		"gpt-4o":        {InputPer1K: 0.005, OutputPer1K: 0.015},
		"claude-sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
	}
	costTracker := cost.NewTracker(pricing, cost.Pricing{InputPer1K: 0.01, OutputPer1K: 0.03}, 100000, cost.Limits{
		Daily:           cfg.Cost.DayBudget,
		Monthly:         cfg.Cost.MonthBudget,
		AlertThresholds: []float64{0.5, cfg.Cost.AlertAt, 1.0},
	}, logger, collector)

	alertCfg := alert.DefaultManagerConfig()
	alertCfg.DedupWindow = cfg.Alert.DedupWindow
	alertCfg.RateLimitPerMin = cfg.Alert.MaxPerMinute
	alertMgr := alert.NewManager(alertCfg, logger, collector)
	alertMgr.RegisterChannel(channels.NewMetrics(collector))
	alertMgr.AddRule(alert.Rule{Severities: []alert.Severity{alert.Warning, alert.Error, alert.Critical}})

	validator := guardrails.NewValidator(guardrails.ValidatorConfig{
		MaxLength:  cfg.Guardrails.MaxLength,
		Strictness: guardrails.Strictness(cfg.Guardrails.Strictness),
		Priority:   10,
	}, logger)
	injectionDetector := guardrails.NewInjectionDetector(guardrails.InjectionDetectorConfig{
		Sensitivity: guardrails.Sensitivity(cfg.Guardrails.InjectionSensitivity),
		Threshold:   cfg.Guardrails.InjectionThreshold,
		CacheTTL:    cfg.Guardrails.CacheTTL,
	}, nil, logger)
	guardian := guardrails.NewChain(guardrails.ChainModeCollectAll)
	guardian.Add(
		guardrails.NewContentChainValidator(validator),
		guardrails.NewInjectionChainValidator(injectionDetector, 20),
	)

	authChain := buildAuthChain(cfg.Auth, logger)

	healthRegistry := health.NewRegistry(Version, false)
	healthRegistry.Register(health.NewBreakerComponent(breaker))
	healthRegistry.Register(health.NewFuncComponent("rate_limiter", func(ctx context.Context) (health.Status, string) {
		return health.Healthy, "accepting requests"
	}))

	return &app{
		limiter:   limiter,
		breaker:   breaker,
		retrier:   retrier,
		ctxMgr:    ctxMgr,
		degrader:  degrader,
		sessions:  sessions,
		slo:       sloManager,
		cost:      costTracker,
		alerts:    alertMgr,
		guardian:  guardian,
		authChain: authChain,
		health:    healthRegistry,
	}
}

func buildAuthChain(cfg config.AuthConfig, logger *zap.Logger) authn.Chain {
	var chain authn.Chain
	for _, provider := range cfg.Providers {
		switch provider {
		case "api_key":
			chain = append(chain, authn.NewAPIKeyProvider(cfg.APIKeyHeader, map[string]authn.Identity{}, cfg.AllowQueryKey))
		case "jwt":
			chain = append(chain, authn.NewJWTProvider(authn.JWTConfig{
				Secret:    cfg.JWT.Secret,
				PublicKey: cfg.JWT.PublicKey,
				Issuer:    cfg.JWT.Issuer,
				Audience:  cfg.JWT.Audience,
				Leeway:    cfg.JWT.Leeway,
			}, logger))
		}
	}
	return chain
}

// guardedHandler demonstrates the guardrails chain gating a request body
// before any downstream work happens.
func (a *app) guardedHandler() http.Handler {
	extract := func(r *http.Request) (string, error) {
		q := r.URL.Query().Get("q")
		return q, nil
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"accepted"}`)
	})
	return httpmw.Guardrails(a.guardian, extract)(inner)
}

func registerHealthRoutes(mux *http.ServeMux, registry *health.Registry) {
	mux.Handle("/health", registry.HealthHandler())
	mux.Handle("/live", registry.LiveHandler())
	mux.Handle("/ready", registry.ReadyHandler())
	mux.Handle("/startup", registry.StartupHandler())
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := []string{"stdout"}
	if cfg.OutputPath != "" {
		outputPaths = []string{cfg.OutputPath}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format != "console" {
		zapConfig.Encoding = "json"
	}

	logger, err := zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func waitForShutdown(srv *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	signal.Stop(quit)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
