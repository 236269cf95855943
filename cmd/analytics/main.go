// Command analytics starts the standalone resolution analytics service.
//
// It consumes resolution and search events from Kafka, aggregates them in
// memory (totals by strategy, unresolved rate, confidence, latency
// percentiles, top queries), snapshots the aggregate to PostgreSQL and
// serves GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/postgres"
)

// main boots the analytics service: a Kafka consumer feeding the in-memory
// aggregator, an optional PostgreSQL snapshot loop, and the HTTP API.
// Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator(cfg.Analytics.TopQueries)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ResolutionEvents, analytics.HandleEvent(agg))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.ResolutionEvents)

	var history http.HandlerFunc
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("snapshot migration failed", "error", err)
			os.Exit(1)
		}
		if latest, err := store.LatestSnapshot(ctx); err == nil && latest != nil {
			slog.Info("previous snapshot found",
				"resolutions", latest.TotalResolutions,
				"unresolved", latest.Unresolved,
			)
		}
		go aggregator.RunPeriodicSave(ctx, store, agg, cfg.Analytics.SnapshotInterval)
		history = aggregator.HistoryHandler(store)
	}

	checker := health.NewChecker()
	checker.Register("kafka", func(context.Context) health.ComponentHealth {
		select {
		case <-consumerDone:
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
		}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.Ping(db.Ping, health.StatusDegraded)(ctx)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	if history != nil {
		mux.HandleFunc("GET /api/v1/analytics/history", history)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Timeout(cfg.Server.WriteTimeout)),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-consumerDone
	slog.Info("analytics service stopped")
}
