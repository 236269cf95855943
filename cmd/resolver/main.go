// Command resolver serves the health content resolver over HTTP.
//
// It loads the canonical entries, alias table, curated map and localized
// modules named in the config, optionally fronts resolution with a Redis
// cache, publishes resolution analytics to Kafka and exposes Prometheus
// metrics on a separate port.
//
// Usage:
//
//	go run ./cmd/resolver [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/api"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/app"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/resolver/cache"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting resolver service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		ms := metrics.NewServer(cfg.Metrics.Port, m)
		if err := ms.Start(); err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer ms.Shutdown(context.Background())
	}

	ds, err := app.LoadDataset(ctx, cfg.Content)
	if err != nil {
		slog.Error("failed to load content", "error", err)
		os.Exit(1)
	}
	a := app.New(app.Options{Resolver: app.ResolverOptions(cfg), Metrics: m})
	if err := a.Initialize(ds); err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	if report := a.Integrity(); !report.OK() {
		for _, d := range report.Dangling {
			slog.Warn("dangling content reference", "kind", d.Kind, "from", d.From, "target", d.Target)
		}
	}

	var resolutionCache api.ResolutionCache
	var redisClient *pkgredis.Client
	if cfg.Resolver.CacheEnabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, resolution caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			var opts []cache.Option
			if m != nil {
				opts = append(opts, cache.WithCounters(m.CacheHitsTotal.Inc, m.CacheMissesTotal.Inc))
			}
			resolutionCache = cache.New(redisClient, a.Store(), cfg.Redis.CacheTTL, opts...)
			slog.Info("resolution cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	mux := http.NewServeMux()
	var tracker api.Tracker
	if cfg.Analytics.Enabled {
		aggregator := analytics.NewAggregator(cfg.Analytics.TopQueries)
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ResolutionEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, aggregator, analytics.CollectorConfig{
			BufferSize: cfg.Analytics.BufferSize,
		})
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.ResolutionEvents)
	}

	checker := health.NewChecker()
	checker.Register("entries", health.MinCount(a.Store().Len, 1, "entries"))
	checker.Register("modules", func(context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d modules", len(a.Modules()))}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.Ping(redisClient.Ping, health.StatusDegraded)(ctx)
	})

	api.New(a, resolutionCache, tracker, api.Options{
		DefaultLimit: cfg.Resolver.DefaultLimit,
		MaxResults:   cfg.Resolver.MaxResults,
	}).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{middleware.RequestID}
	if cfg.Tracing.Enabled {
		chain = append(chain, middleware.Tracing(cfg.Tracing.SampleRate))
	}
	chain = append(chain, middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)))
	if m != nil {
		chain = append(chain, middleware.Metrics(m))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(ctx, cfg.Server.RateLimit, cfg.Server.RateWindow)
		chain = append(chain, middleware.RateLimit(limiter, cfg.Server.RateWindow))
	}
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("resolver service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("resolver service stopped")
}
