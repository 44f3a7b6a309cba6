package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crm-quotes/internal/app"
	"github.com/noah-isme/crm-quotes/internal/audit"
	"github.com/noah-isme/crm-quotes/internal/auth"
	"github.com/noah-isme/crm-quotes/internal/catalog"
	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/config"
	"github.com/noah-isme/crm-quotes/internal/db"
	"github.com/noah-isme/crm-quotes/internal/events"
	"github.com/noah-isme/crm-quotes/internal/health"
	"github.com/noah-isme/crm-quotes/internal/obs"
	"github.com/noah-isme/crm-quotes/internal/quote"
	"github.com/noah-isme/crm-quotes/internal/ratelimit"
	"github.com/noah-isme/crm-quotes/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := app.InitTracing(ctx, cfg, "crm-quotes-api", logger)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	var httpMetrics *obs.HTTPMetrics
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil)
		gatherer = prometheus.DefaultGatherer
	}
	quoteMetrics := obs.NewQuoteMetrics(cfg.MetricsNamespace, nil)

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := app.OpenPool(startCtx, cfg, "crm-quotes-api", logger, quoteMetrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var taskClient *asynq.Client
	if cfg.EventsEnabled {
		opt, err := app.TaskRedis(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("configure task queue")
		}
		taskClient = asynq.NewClient(opt)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      catalog.NewStore(pool),
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.QuoteDefaultPageSize,
		MaxLimit:     cfg.QuoteMaxPageSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	quoteService, err := quote.NewService(quote.ServiceConfig{
		Repository:      quote.NewStore(pool),
		Catalog:         catalogService,
		Events:          events.NewPublisher(taskClient, logger),
		Metrics:         quoteMetrics,
		DefaultTaxRate:  cfg.DefaultTaxRate,
		ReferencePrefix: cfg.QuoteReferencePrefix,
		DefaultLimit:    cfg.QuoteDefaultPageSize,
		MaxLimit:        cfg.QuoteMaxPageSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote service")
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}

	previewLimiter, err := ratelimit.New(cfg.PreviewRateLimitStore, redisClient, "rl:")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise preview rate limiter")
	}

	auditService := &audit.Service{Store: audit.NewPGStore(pool), Enabled: cfg.AuditEnabled}

	router := app.NewRouter(app.Deps{
		Logger:          logger,
		HTTPMetrics:     httpMetrics,
		MetricsGatherer: gatherer,
		Tracing:         cfg.TracingEnabled,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		Headers:         security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS, HSTSIncludeSubdomains: true},
		BodyLimit:       security.BodyLimit{Max: cfg.MaxRequestBodyBytes},
		Health: health.Handler{
			Checker:      health.Probes{DB: pool, Redis: redisClient},
			DBTimeout:    cfg.ReadyDBTimeout,
			RedisTimeout: cfg.ReadyRedisTimeout,
		},
		Catalog: catalog.NewHandler(catalog.HandlerConfig{Service: catalogService}),
		Quotes: quote.NewHandler(quote.HandlerConfig{
			Service:        quoteService,
			DefaultPerPage: cfg.QuoteDefaultPageSize,
			MaxPerPage:     cfg.QuoteMaxPageSize,
		}),
		Auth:        auth.Middleware{Verifier: verifier},
		Idempotency: common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		PreviewLimit: ratelimit.Handler{
			Limiter: previewLimiter,
			Config: ratelimit.Config{
				Key:    ratelimit.ByClientIP("preview"),
				Window: cfg.PreviewRateWindow,
				Max:    cfg.PreviewRateLimit,
			},
			OnError: func(err error) { logger.Warn().Err(err).Msg("preview rate limiter unavailable") },
		},
		Audit: audit.HTTPRecorder{
			Service: auditService,
			OnError: func(err error) { logger.Error().Err(err).Msg("record quote activity") },
		},
		Activity: audit.Handler{Service: auditService},
		Pprof:    app.PprofConfig{Enabled: cfg.PprofEnabled, User: cfg.PprofUser, Pass: cfg.PprofPass},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serve(ctx, srv, cfg.ShutdownTimeout, logger)
}

func serve(ctx context.Context, srv *http.Server, drain time.Duration, logger zerolog.Logger) {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}
