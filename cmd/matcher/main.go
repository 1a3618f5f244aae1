// Command matcher serves dialog matching over HTTP.
//
// Every corpus named in the config is indexed at startup. Queries are
// answered at GET /api/v1/match; corpora can be listed, reloaded and (with
// matcher.watch) are reloaded automatically when their files change.
//
// Usage:
//
//	go run ./cmd/matcher [-config configs/development.yaml]
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/handler"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/tracing"
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
	slog.Info("starting matcher service", "port", cfg.Server.Port, "corpora", len(cfg.Matcher.Corpora))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	// Events always feed the in-process aggregator; with Kafka enabled they
	// are also shipped to the analytics service.
	aggregator := analytics.NewAggregator()
	trackers := analytics.Tee{aggregator}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.MatchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer,
			cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		// Close, not the signal, ends the collector so late events still flush.
		collector.Start(context.WithoutCancel(ctx))
		defer collector.Close()
		trackers = append(trackers, collector)
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.MatchEvents)
	}

	reg, err := registry.FromConfig(cfg.Matcher,
		registry.WithMetrics(m),
		registry.WithReloadHook(func(name, status string, stats matcher.Stats, err error) {
			event := analytics.ReloadEvent{
				Type:       analytics.EventReload,
				Corpus:     name,
				Status:     status,
				Documents:  stats.Documents,
				Vocabulary: stats.Vocabulary,
				Generation: stats.Generation,
				Timestamp:  time.Now().UTC(),
			}
			if err != nil {
				event.Error = err.Error()
			}
			trackers.Track(name, event)
		}),
	)
	if err != nil {
		slog.Error("failed to load corpora", "error", err)
		os.Exit(1)
	}
	if cfg.Matcher.Watch {
		go func() {
			if err := reg.Watch(ctx); err != nil {
				slog.Error("corpus watcher stopped", "error", err)
			}
		}()
	}

	var candidateCache *cache.CandidateCache
	var redisClient *pkgredis.Client
	if cfg.Cache.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, candidate caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			candidateCache = cache.New(redisClient, cfg.Cache, m)
			slog.Info("candidate cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled && !cfg.Kafka.Enabled {
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer db.Close()
			snapshots := store.New(db)
			if err := snapshots.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics schema unavailable, snapshots disabled", "error", err)
			} else {
				go snapshots.RunPeriodic(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			}
		}
	}

	execOpts := []executor.Option{
		executor.WithTracker(trackers),
		executor.WithMetrics(m),
		executor.WithTracer(tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)),
		executor.WithTimeout(cfg.Matcher.QueryTimeout),
	}
	if candidateCache != nil {
		execOpts = append(execOpts, executor.WithCache(candidateCache))
	}
	exec := executor.New(reg, execOpts...)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("corpora", func(ctx context.Context) health.ComponentHealth {
		infos := reg.List()
		if len(infos) == 0 {
			return health.Down("no corpora loaded")
		}
		for _, info := range infos {
			if info.Stats.Documents == 0 {
				return health.Degraded(fmt.Sprintf("corpus %s is empty", info.Name))
			}
		}
		return health.Up(fmt.Sprintf("%d corpora loaded", len(infos)))
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.Degraded("not configured")
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.Degraded(err.Error())
		}
		return health.Up("")
	})
	if db != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.Degraded(err.Error())
			}
			return health.Up("")
		})
	}

	mux := http.NewServeMux()
	handler.New(exec, reg, candidateCache).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.RunPruner(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	metricsPort := 0
	if cfg.Metrics.Enabled {
		metricsPort = cfg.Metrics.Port
	}
	shutdownMetrics := metrics.StartServer(metricsPort, promRegistry)

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
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}()

	slog.Info("matcher service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight requests
	// may still track events until it finishes.
	<-stopped

	slog.Info("matcher service stopped")
}
