// Command analytics runs the standalone ranking-analytics service.
//
// It consumes rank and table-rebuild events from Kafka, folds them into
// running statistics (query volume per mode, latency percentiles, cache hit
// rate, most queried and most recommended films) and serves them at
// GET /api/v1/analytics. When the table store is postgres, snapshots are
// saved there periodically and the latest one is served at
// GET /api/v1/analytics/snapshot (503 otherwise).
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
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
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/postgres"
)

const snapshotInterval = time.Minute

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.RankEvents)
	if !cfg.Kafka.Enabled {
		slog.Warn("kafka is disabled in config, no events will arrive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RankEvents, analytics.HandleEvent(aggregator))
	defer consumer.Close()
	if cfg.Kafka.Enabled {
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("aggregator", func(ctx context.Context) health.ComponentHealth {
		if !cfg.Kafka.Enabled {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "kafka disabled"}
		}
		st := consumer.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("processed %d, failed %d, lag %d", st.Processed, st.Failed, st.Lag),
		}
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	stats := analytics.NewHandler(aggregator)
	r.Get("/api/v1/analytics", stats.Stats)
	r.Get("/api/v1/analytics/snapshot", stats.Snapshot)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())

	if cfg.Table.Store == "postgres" {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		snapshots := snapshot.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create snapshot schema", "error", err)
			os.Exit(1)
		}
		snapshots.StartPeriodicSave(ctx, aggregator, snapshotInterval)
		checker.Register("postgres", health.PingCheck(db.Ping, true))
		stats.WithSnapshots(snapshots)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
