package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/tablestore"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/postgres"
)

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	threshold := flag.Float64("threshold", -1, "minimum score kept in the table (overrides config when >= 0)")
	workers := flag.Int("workers", 0, "scoring goroutines (overrides config when > 0)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *threshold >= 0 {
		cfg.Similarity.SimilarityThreshold = *threshold
	}
	if *workers > 0 {
		cfg.Similarity.Workers = *workers
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting similarity table build",
		"corpus", cfg.Corpus.Path,
		"store", cfg.Table.Store,
		"threshold", cfg.Similarity.SimilarityThreshold,
	)
	if cfg.Table.Store == "none" {
		slog.Warn("table store is disabled, the built table will not be kept")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
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

	svc, err := recommender.Build(catalog, recommender.RankerConfig(cfg.Similarity), recommender.Options{
		Tables:    tables,
		Threshold: cfg.Similarity.SimilarityThreshold,
	})
	if err != nil {
		slog.Error("failed to build similarity engine", "error", err)
		os.Exit(1)
	}

	info, err := svc.RebuildTable(ctx)
	if err != nil {
		slog.Error("similarity table build failed", "error", err)
		os.Exit(1)
	}
	slog.Info("similarity table build complete",
		"documents", info.Documents,
		"pairs", info.Pairs,
		"threshold", info.Threshold,
	)
}
