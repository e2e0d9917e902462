// Package main is the entrypoint for the Credport API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mjeyi/credport/internal/aggregate"
	"github.com/mjeyi/credport/internal/auth"
	"github.com/mjeyi/credport/internal/bureau"
	"github.com/mjeyi/credport/internal/cache"
	"github.com/mjeyi/credport/internal/config"
	"github.com/mjeyi/credport/internal/handler"
	"github.com/mjeyi/credport/internal/metrics"
	"github.com/mjeyi/credport/internal/middleware"
	"github.com/mjeyi/credport/internal/repository"
	"github.com/mjeyi/credport/internal/server"
	"github.com/mjeyi/credport/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	metricsRecorder := metrics.NewNoop()

	hasher := auth.NewHasher(auth.HashParams{
		MemoryKiB: cfg.HashMemoryKiB,
		Time:      cfg.HashTime,
		Threads:   cfg.HashThreads,
	})

	tokens, err := auth.NewTokenService([]byte(cfg.SessionSigningKey), cfg.SessionTTL, nil)
	if err != nil {
		logger.Error("failed to initialize token service", "error", err)
		os.Exit(1)
	}

	accounts, err := service.NewAccountService(repo, hasher, metricsRecorder)
	if err != nil {
		logger.Error("failed to initialize account service", "error", err)
		os.Exit(1)
	}

	sources, err := cfg.GetBureauSources()
	if err != nil {
		logger.Error("invalid bureau configuration", "error", err)
		os.Exit(1)
	}

	// All bureau clients share one tuned transport; per-call deadlines come
	// from the aggregator's contexts.
	httpClient := bureau.NewHTTPTransport()
	clients := make([]bureau.Client, 0, len(sources))
	for _, src := range sources {
		clients = append(clients, bureau.NewHTTPClient(src.Name, src.Endpoint, src.APIKey, httpClient))
		logger.Info("configured bureau source", "name", src.Name, "endpoint", redactURL(src.Endpoint))
	}

	aggregator := aggregate.New(clients, repo, logger, aggregate.Options{
		FetchTimeout:     cfg.BureauFetchTimeout,
		Deadline:         cfg.AggregationDeadline,
		MaxAppendRetries: cfg.LedgerMaxRetries,
		CacheTTL:         cfg.ReportCacheTTL,
		Cache:            cacheClient,
		Metrics:          metricsRecorder,
	})

	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	accountHandler := handler.NewAccountHandler(accounts, tokens, logger)
	reportHandler := handler.NewReportHandler(aggregator, accounts, repo, logger)

	r := setupRouter(h, healthHandler, accountHandler, reportHandler, tokens, cacheClient, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"bureau_sources", len(clients),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	accountHandler *handler.AccountHandler,
	reportHandler *handler.ReportHandler,
	tokens *auth.TokenService,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Root info endpoint
	r.Get("/", h.Hello)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       logger,
		Cache:        cacheClient,
		APIEnabled:   cfg.RateLimitAPIEnabled,
		APIRPM:       cfg.RateLimitAPIRPM,
		APIBurst:     cfg.RateLimitAPIBurst,
		LoginEnabled: cfg.RateLimitLoginEnabled,
		LoginRPM:     cfg.RateLimitLoginRPM,
		LoginBurst:   cfg.RateLimitLoginBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

		// Registration and login are the only unauthenticated API routes.
		// Login is IP rate limited to slow down credential stuffing.
		r.Post("/register", accountHandler.Register)
		r.With(middleware.RateLimitLogin(rateLimitCfg)).Post("/login", accountHandler.Login)

		// Everything else requires a valid session token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens, logger))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Get("/profile", accountHandler.Profile)
			r.Post("/reports", reportHandler.Aggregate)
			r.Get("/reports/history", reportHandler.History)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
