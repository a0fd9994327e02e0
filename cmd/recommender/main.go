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
	k := flag.Int("k", 10, "number of recommendations to show")
	buildTable := flag.Bool("build-table", true, "build and save the similarity table when none is stored")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")

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

	fmt.Printf("Loaded %d films\n", catalog.Len())
	if err := newSession(svc, os.Stdin, os.Stdout, svc.Limit(*k)).run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("session ended with error", "error", err)
		os.Exit(1)
	}
}
