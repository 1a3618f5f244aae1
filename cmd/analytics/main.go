// Command analytics starts the standalone analytics aggregation service.
//
// It consumes match and reload events from Kafka, aggregates them in memory
// (query counts, outcome mix, latency percentiles, cache hit rate, top
// queries, corpus reloads), optionally snapshots the aggregate to Postgres,
// and exposes GET /api/v1/analytics for dashboards.
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/postgres"
)

// main boots the analytics service: a Kafka consumer feeding the aggregator,
// optional periodic snapshots, health checks and the HTTP API. SIGINT or
// SIGTERM shuts it down gracefully.
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

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.MatchEvents, aggregator.HandleEvent())
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Start(ctx)
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.MatchEvents)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case err := <-consumerErr:
			consumerErr <- err
			if err != nil {
				return health.Down(err.Error())
			}
			return health.Down("consumer stopped")
		default:
			return health.Up("consumer active")
		}
	})

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		snapshots := store.New(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create analytics schema", "error", err)
			os.Exit(1)
		}
		go snapshots.RunPeriodic(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.Degraded(err.Error())
			}
			return health.Up("")
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
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
	<-stopped

	slog.Info("analytics service stopped")
}
