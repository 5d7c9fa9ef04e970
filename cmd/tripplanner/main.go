package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"tripplanner/internal/auth"
	"tripplanner/internal/auth/oidc"
	"tripplanner/internal/billing"
	"tripplanner/internal/export"
	"tripplanner/internal/gateway"
	tripHTTP "tripplanner/internal/http"
	"tripplanner/internal/observability"
	"tripplanner/internal/planning"
	"tripplanner/internal/planning/llm"
	"tripplanner/internal/realtime"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	logger := observability.NewLogger(observability.ConfigFromEnv())

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address (host:port)")
	migrate := flag.String("migrate", "", "run migrations: 'up' to apply, 'status' to show status")
	flag.Parse()

	sentryEnabled := false
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          cfg.Version,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized", "environment", cfg.SentryEnvironment, "release", cfg.Version)
			sentryEnabled = true
		}
	}

	if *migrate != "" {
		runMigrationsCLI(logger, cfg, *migrate)
		return
	}

	// Select storage based on build tags (see store_*.go in this package).
	store := selectStore(logger, cfg)
	readyChecks := map[string]tripHTTP.Pinger{}
	if p, ok := store.(tripHTTP.Pinger); ok {
		readyChecks["database"] = p
	}

	metricsCfg := observability.MetricsConfigFromEnv()
	var metrics *observability.Metrics
	if metricsCfg.Enabled {
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled", "namespace", metricsCfg.Namespace, "version", metricsCfg.Version)
	} else {
		logger.Info("metrics disabled")
	}

	gwCfg, err := gateway.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid provider configuration", "error", err)
		os.Exit(1)
	}
	gwOpts := []gateway.Option{gateway.WithLogger(logger), gateway.WithMetrics(metrics)}
	llmCfg := llm.ConfigFromEnv()
	gwOpts = append(gwOpts, gateway.WithLLM(llm.NewOpenAIProvider(llmCfg)))
	if llmCfg.APIKey != "" {
		logger.Info("generative provider enabled", "model", llmCfg.Model, "endpoint", llmCfg.Endpoint)
	} else {
		logger.Info("generative provider disabled (set TRIPPLANNER_LLM_API_KEY to enable)")
	}

	sessions := auth.SessionStore(auth.NewMemorySessionStore())
	var redisClient *redis.Client
	if gwCfg.RedisURL != "" {
		cache, err := gateway.NewRedisCache(gwCfg.RedisURL)
		if err != nil {
			logger.Error("redis cache init failed; using in-process cache", "error", err)
		} else {
			gwOpts = append(gwOpts, gateway.WithCache(cache))
			readyChecks["redis"] = cache
			defer func() { _ = cache.Close() }()
			logger.Info("using redis provider cache")
		}
		if opts, err := redis.ParseURL(gwCfg.RedisURL); err == nil {
			redisClient = redis.NewClient(opts)
			sessions = auth.NewRedisSessionStore(redisClient)
			logger.Info("using redis session store")
		}
	}
	gw := gateway.New(gwCfg, gwOpts...)

	hub := realtime.NewHub()
	notifying := realtime.NewNotifyingStore(store, hub)

	billCfg, err := billing.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid billing configuration", "error", err)
		os.Exit(1)
	}
	bill := billing.NewService(billCfg, notifying, gw, logger)

	var tokens *auth.Tokens
	if cfg.TokenSecret != "" {
		tokens, err = auth.NewTokens([]byte(cfg.TokenSecret), cfg.TokenTTL)
		if err != nil {
			logger.Error("bearer tokens disabled", "error", err)
		} else {
			logger.Info("bearer tokens enabled", "ttl", cfg.TokenTTL.String())
		}
	} else {
		logger.Info("bearer tokens disabled (set TRIPPLANNER_TOKEN_SECRET to enable)")
	}
	authSvc := auth.NewService(notifying, sessions, tokens, auth.Config{
		SessionTTL:        cfg.SessionTTL,
		MinPasswordLength: cfg.MinPasswordLength,
	})

	var (
		provider *oidc.Provider
		sealer   *oidc.Sealer
	)
	if cfg.OIDC.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		provider, err = oidc.NewProvider(ctx, cfg.OIDC)
		cancel()
		if err != nil {
			logger.Error("oidc discovery failed; oidc sign-in disabled", "issuer", cfg.OIDC.IssuerURL, "error", err)
			provider = nil
		} else if sealer, err = oidc.NewSealer([]byte(cfg.StateSecret)); err != nil {
			logger.Error("oidc state sealer init failed; oidc sign-in disabled", "error", err)
			provider = nil
		} else {
			logger.Info("oidc sign-in enabled", "issuer", cfg.OIDC.IssuerURL)
		}
	}

	keywords, err := planning.KeywordsFromEnv()
	if err != nil {
		logger.Error("invalid keyword configuration", "error", err)
		os.Exit(1)
	}
	gen := planning.NewGenerator(notifying, gw, logger, metrics)
	orch := planning.NewOrchestrator(notifying, gw, gen, logger, metrics,
		planning.WithKeywords(keywords),
		planning.WithGenerationTimeout(cfg.GenerationTimeout),
	)

	zones, err := export.DefaultZoneFinder()
	if err != nil {
		logger.Warn("time zone lookup disabled; calendar times will float", "error", err)
		zones = nil
	}

	srv := tripHTTP.NewServer(tripHTTP.Deps{
		Store:        notifying,
		Auth:         authSvc,
		OIDC:         provider,
		Sealer:       sealer,
		Orchestrator: orch,
		Travel:       gw,
		Billing:      bill,
		Hub:          hub,
		Zones:        zones,
		Logger:       logger,
		Metrics:      metrics,
		ReadyChecks:  readyChecks,
	}, cfg.httpConfig())

	if !cfg.RateLimit.Enabled() {
		logger.Info("rate limiting disabled")
	} else {
		logger.Info("rate limiting configured",
			"requests_per_second", cfg.RateLimit.RequestsPerSecond,
			"burst", cfg.RateLimit.Burst,
			"trusted_proxies", len(cfg.RateLimit.TrustedProxies),
		)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Itinerary generation holds the request open while the provider answers.
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("tripplanner listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	// Background generations started by chat turns finish before the store
	// closes.
	orch.Wait()

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	} else {
		logger.Info("database connection closed")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

// runMigrationsCLI executes migration commands.
func runMigrationsCLI(logger observability.Logger, cfg config, cmd string) {
	switch cmd {
	case "up":
		// Opening the store applies pending migrations.
		st := selectStore(logger, cfg)
		_ = st.Close()
		runMigrationsCLI(logger, cfg, "status")
	case "status":
		status := migrationStatus(cfg)
		if status == "" {
			status = "migrations status not available in this build"
		}
		logger.Info("migrations status", "status", status)
	default:
		logger.Warn("unknown migrate command", "command", cmd)
	}
}
