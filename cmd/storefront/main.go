package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/gateway"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/security"
	"github.com/noah-isme/toko-storefront/internal/storefront"
)

const shutdownGrace = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := cfg.Obs.EnablePrometheus
	if metricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		resilience.RegisterMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   obs.ServiceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb redis.UniversalClient
	if cfg.RedisURL != "" {
		client := mustInitRedis(ctx, cfg, logger, metricsEnabled)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		rdb = client
	}

	products := newCatalog(cfg, rdb, logger)
	session := storefront.NewSession(storefront.Options{
		Catalog: products,
		Gateway: newOrderGateway(cfg, logger),
		Checkout: checkout.Config{
			Timeout: cfg.CheckoutTimeout,
			Tracer:  obs.Tracer("checkout"),
		},
		Logger: logger,
	})
	handler := storefront.NewHandler(storefront.HandlerConfig{Session: session, Logger: logger})

	checkoutLimiter, err := ratelimit.New(cfg.CheckoutRateLimit, rdb, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout rate limit")
	}
	checkoutMW := []func(http.Handler) http.Handler{
		ratelimit.Handler{
			Limiter: checkoutLimiter,
			Key:     common.ClientIP,
			OnError: func(err error) { logger.Warn().Err(err).Msg("checkout_rate_limit_unavailable") },
		}.Middleware,
	}
	if rdb != nil {
		checkoutMW = append(checkoutMW, common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}.Middleware)
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{HSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Probes: readinessProbes(rdb, products)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		handler.Mount(v, checkoutMW...)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("catalog", cfg.CatalogSource).Str("gateway", cfg.OrderGateway).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown started")
	health.SetReady(false)
	session.Events.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown http server")
	}
	session.Close()
	logger.Info().Msg("shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metricsEnabled bool) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func newCatalog(cfg *config.Config, rdb redis.UniversalClient, logger zerolog.Logger) catalog.Catalog {
	var source catalog.Catalog
	switch cfg.CatalogSource {
	case config.CatalogSourceHTTP:
		source = catalog.HTTPCatalog{
			URL: cfg.CatalogURL,
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
				Timeout:   5 * time.Second,
			},
		}
	default:
		source = catalog.FileCatalog{Path: cfg.CatalogFile}
	}
	if rdb == nil {
		return source
	}
	return catalog.CachedCatalog{
		Source: source,
		Cache:  catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Key:    catalog.DefaultCacheKey,
		Logger: logger.With().Str("component", "catalog_cache").Logger(),
	}
}

func newOrderGateway(cfg *config.Config, logger zerolog.Logger) checkout.OrderGateway {
	if cfg.OrderGateway != config.GatewayHTTP {
		return gateway.MockGateway{Latency: cfg.OrderGatewayMockLatency}
	}
	client := resilience.HTTPClient{
		Client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker: resilience.NewBreaker(resilience.BreakerSettings{
			Target:       "order_gateway",
			MinRequests:  cfg.CircuitMinRequests,
			FailureRatio: cfg.CircuitFailureRatio,
			OpenFor:      cfg.CircuitOpenFor,
			Logger:       logger,
		}),
		Retry: resilience.RetryPolicy{
			Base:        cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent,
		},
		Timeout: cfg.AttemptTimeout(),
	}
	return gateway.NewHTTPGateway(cfg.OrderGatewayURL, client, logger.With().Str("component", "order_gateway").Logger())
}

func readinessProbes(rdb redis.UniversalClient, products catalog.Catalog) []health.Probe {
	probes := []health.Probe{{
		Name:    "catalog",
		Timeout: 2 * time.Second,
		Check: func(ctx context.Context) error {
			_, err := products.Products(ctx)
			return err
		},
	}}
	if rdb != nil {
		probes = append(probes, health.Probe{
			Name:    "redis",
			Timeout: 300 * time.Millisecond,
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}
	return probes
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
