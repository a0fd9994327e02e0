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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender/cache"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/tablestore"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/redis"
)

const snapshotInterval = time.Minute

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	buildTable := flag.Bool("build-table", false, "build the similarity table at startup when none is stored")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting film similarity service", "port", cfg.Server.Port, "corpus", cfg.Corpus.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	var db *postgres.Client
	if cfg.Table.Store == "postgres" {
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	tables, err := tablestore.Open(ctx, cfg.Table, db)
	if err != nil {
		slog.Error("failed to open similarity table store", "error", err)
		os.Exit(1)
	}

	var resultCache *cache.ResultCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			resultCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	analyticsHandler := analytics.NewHandler(aggregator)
	var tracker analytics.Tracker = aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RankEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RankEvents, analytics.HandleEvent(aggregator))
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.RankEvents, "group", cfg.Kafka.ConsumerGroup)
	}
	if db != nil {
		snapshots := snapshot.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Warn("analytics snapshot schema unavailable", "error", err)
		} else {
			snapshots.StartPeriodicSave(ctx, aggregator, snapshotInterval)
			analyticsHandler.WithSnapshots(snapshots)
		}
	}

	svc, err := recommender.Build(catalog, recommender.RankerConfig(cfg.Similarity), recommender.Options{
		Cache:        resultCache,
		Tracker:      tracker,
		Metrics:      m,
		Tables:       tables,
		Threshold:    cfg.Similarity.SimilarityThreshold,
		DefaultLimit: cfg.Similarity.DefaultLimit,
		MaxResults:   cfg.Similarity.MaxResults,
	})
	if err != nil {
		slog.Error("failed to build similarity engine", "error", err)
		os.Exit(1)
	}
	if _, err := svc.EnsureTable(ctx, *buildTable); err != nil {
		slog.Warn("similarity table unavailable, ranking on the fly", "error", err)
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		if catalog.Len() == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "corpus is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d films", catalog.Len())}
	})
	if redisClient != nil {
		checker.Register("redis", redisClient.HealthCheck())
	}
	if db != nil {
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowOrigins = cfg.Server.CORSOrigins
		r.Use(middleware.CORS(cors))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		limiter.StartCleanup(ctx)
		r.Use(middleware.RateLimit(limiter))
	}
	api := handler.New(svc).Routes(cfg.Server.RequestTimeout)
	api.Get("/analytics", analyticsHandler.Stats)
	api.Get("/analytics/snapshot", analyticsHandler.Snapshot)
	r.Mount("/api/v1", api)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
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

	slog.Info("film similarity service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("film similarity service stopped")
}
