// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/theatlasimpact/papermark-vansgiving/internal/analytics"
	"github.com/theatlasimpact/papermark-vansgiving/internal/api"
	"github.com/theatlasimpact/papermark-vansgiving/internal/auth"
	"github.com/theatlasimpact/papermark-vansgiving/internal/billing"
	"github.com/theatlasimpact/papermark-vansgiving/internal/config"
	"github.com/theatlasimpact/papermark-vansgiving/internal/document"
	"github.com/theatlasimpact/papermark-vansgiving/internal/health"
	"github.com/theatlasimpact/papermark-vansgiving/internal/middleware"
	"github.com/theatlasimpact/papermark-vansgiving/internal/plan"
	"github.com/theatlasimpact/papermark-vansgiving/internal/storage"
	"github.com/theatlasimpact/papermark-vansgiving/internal/team"
	"github.com/theatlasimpact/papermark-vansgiving/internal/tinybird"
	"github.com/theatlasimpact/papermark-vansgiving/internal/tracing"
	"github.com/theatlasimpact/papermark-vansgiving/internal/view"
)

const reportCacheTTL = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Papermark Analytics API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for key, val := range summary {
		attrs = append(attrs, key, val)
	}
	logger.Info("configuration loaded", attrs...)

	// Distributed tracing. The provider is a no-op when disabled.
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "papermark-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("database not reachable at startup, continuing", "error", err)
	}
	pingCancel()

	// Redis is optional. Without it the report cache and rate limiter
	// fall back to in-process stores.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()
	}

	// Repositories.
	documents := document.NewPostgresRepository(db)
	links := document.NewPostgresLinkRepository(db)
	views := view.NewPostgresRepository(db)
	teams := team.NewPostgresRepository(db)
	webhookEvents := billing.NewPostgresWebhookRepository(db)

	// Metrics registry.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}

	engineMetrics := analytics.NewMetrics()
	if err := engineMetrics.Register(registry); err != nil {
		logger.Error("failed to register analytics metrics", "error", err)
		os.Exit(1)
	}

	// Report cache.
	var cacheStore analytics.CacheStore
	if redisClient != nil {
		cacheStore = analytics.NewRedisStore(redisClient)
	} else {
		cacheStore = analytics.NewMemoryStore()
	}
	reportCache := analytics.NewReportCache(cacheStore, reportCacheTTL)

	// Time-series backend. An empty token degrades every report instead
	// of failing requests.
	tsdb := tinybird.NewClient(cfg.TinybirdBaseURL, cfg.TinybirdToken)
	if cfg.TinybirdToken == "" {
		logger.Warn("TINYBIRD_TOKEN not set, engagement reports will be degraded")
	}

	engine := analytics.NewEngine(
		documents,
		links,
		views,
		teams,
		tsdb,
		plan.Gate{SelfHosted: cfg.SelfHosted},
		logger,
		reportCache,
		engineMetrics,
	)

	// File URL signing is optional. Without S3 credentials the file
	// endpoint reports the capability as unavailable.
	var fileSigner api.FileURLSigner
	if cfg.S3Configured() {
		s3Service, err := storage.NewService(storage.ServiceConfig{
			BucketName:      cfg.S3BucketName,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			logger.Error("failed to initialize file storage", "error", err)
			os.Exit(1)
		}
		fileSigner = s3Service
	} else {
		logger.Warn("S3 not configured, file URL signing disabled")
	}

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	// Rate limiting backed by Redis when available.
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).
			WithMetrics(httpMetrics).
			WithLogger(logger)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		rateLimitStore = memStore
	}

	// Routes. Report endpoints get a tighter per-user rate limit since each
	// request fans out to the analytics backend.
	mux := http.NewServeMux()

	analyticsHandlers := api.NewAnalyticsHandlers(engine, teams, documents, links, fileSigner)
	reportMux := http.NewServeMux()
	analyticsHandlers.Register(reportMux)
	reportLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultReportLimit(), middleware.UserKeyFunc(), httpMetrics)
	mux.Handle("/teams/", reportLimiter(reportMux))
	mux.Handle("/links/", reportLimiter(reportMux))

	var dbChecker api.HealthChecker = health.NewDBChecker(db)
	var redisChecker api.HealthChecker
	if redisClient != nil {
		redisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:          dbChecker,
		RedisChecker:       redisChecker,
		TinybirdConfigured: cfg.TinybirdToken != "",
	})
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)

	if cfg.StripeConfigured() {
		webhookHandlers := api.NewWebhookHandlers(
			cfg.StripeWebhookSecret,
			teams,
			webhookEvents,
			billing.PriceMap(cfg.StripePriceMap),
		)
		mux.HandleFunc("/internal/stripe", webhookHandlers.HandleStripeWebhook)
	} else {
		logger.Warn("Stripe not configured, billing webhooks disabled")
	}

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Middleware chain, outermost first.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.Auth(jwtService)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("papermark-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
