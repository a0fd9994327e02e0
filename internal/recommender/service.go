// Package recommender answers film similarity queries on top of the ranker:
// it resolves titles, caches results, records metrics and analytics, and
// manages the precomputed similarity table.
package recommender

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender/cache"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/model"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/store"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/tablestore"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/metrics"
)

const topTermsShown = 10

// Options wires the optional collaborators of a Service. Nil fields turn the
// corresponding feature off.
type Options struct {
	Cache        *cache.ResultCache
	Tracker      analytics.Tracker
	Metrics      *metrics.Metrics
	Tables       tablestore.Store
	Threshold    float64
	DefaultLimit int
	MaxResults   int
}

// Recommendation is a ranked film enriched with catalogue details.
type Recommendation struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Year   int      `json:"year,omitempty"`
	Genres []string `json:"genres"`
	Rating float64  `json:"rating,omitempty"`
	Score  float64  `json:"score"`
}

// Result is the answer to one ranking query.
type Result struct {
	Mode      analytics.Mode   `json:"mode"`
	Query     []string         `json:"query"`
	K         int              `json:"k"`
	Results   []Recommendation `json:"results"`
	CacheHit  bool             `json:"cache_hit"`
	LatencyMs int64            `json:"latency_ms"`
}

// FilmInfo is a catalogue entry plus its heaviest synopsis terms.
type FilmInfo struct {
	corpus.Film
	TopTerms []model.Entry `json:"top_terms"`
}

// TableInfo describes the table the ranker currently consults.
type TableInfo struct {
	Loaded    bool      `json:"loaded"`
	Documents int       `json:"documents"`
	Pairs     int       `json:"pairs"`
	Threshold float64   `json:"threshold"`
	Dropped   int       `json:"dropped,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitempty"`
}

// Service answers similarity queries over one catalogue.
type Service struct {
	catalog   *corpus.Catalog
	ranker    *ranker.Ranker
	cache     *cache.ResultCache
	tracker   analytics.Tracker
	metrics   *metrics.Metrics
	tables    tablestore.Store
	threshold float64
	defaultK  int
	maxK      int
	namespace string

	rebuilds singleflight.Group
	mu       sync.RWMutex
	info     TableInfo
	logger   *slog.Logger
}

// Build indexes the catalogue, builds the TF-IDF model and wraps it in a
// Service.
func Build(catalog *corpus.Catalog, cfg ranker.Config, opts Options) (*Service, error) {
	start := time.Now()
	s, err := store.Build(catalog.Documents())
	if err != nil {
		return nil, fmt.Errorf("building document store: %w", err)
	}
	m := model.Build(s)
	r, err := ranker.New(m, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating ranker: %w", err)
	}
	svc := New(catalog, r, opts)
	svc.logger.Info("similarity engine ready",
		"documents", s.Len(),
		"vocabulary", len(s.Vocabulary()),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return svc, nil
}

// New wraps an existing ranker. The ranker must have been built from
// catalog.Documents().
func New(catalog *corpus.Catalog, r *ranker.Ranker, opts Options) *Service {
	if opts.Tables == nil {
		opts.Tables = tablestore.Disabled{}
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	svc := &Service{
		catalog:   catalog,
		ranker:    r,
		cache:     opts.Cache,
		tracker:   opts.Tracker,
		metrics:   opts.Metrics,
		tables:    opts.Tables,
		threshold: opts.Threshold,
		defaultK:  opts.DefaultLimit,
		maxK:      opts.MaxResults,
		namespace: fingerprint(catalog, r.Config()),
		logger:    slog.Default().With("component", "recommender"),
	}
	if svc.metrics != nil {
		st := r.Model().Store()
		svc.metrics.CorpusDocuments.Set(float64(st.Len()))
		svc.metrics.VocabularySize.Set(float64(len(st.Vocabulary())))
	}
	return svc
}

// fingerprint identifies the corpus and weighting so neither cached results
// nor persisted tables outlive either.
func fingerprint(catalog *corpus.Catalog, cfg ranker.Config) string {
	h := sha256.New()
	fmt.Fprintf(h, "%g|%g|%s|%g\n", cfg.ContentWeight, cfg.CategoryWeight, cfg.CategoryPolicy, cfg.GenreBoostPerMatch)
	for _, d := range catalog.Documents() {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.Body))
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(d.Tags, "\x1f")))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}

func (s *Service) Catalog() *corpus.Catalog {
	return s.catalog
}

func (s *Service) Ranker() *ranker.Ranker {
	return s.ranker
}

// Limit resolves a requested result count: 0 means the default, anything
// above the maximum is capped.
func (s *Service) Limit(k int) int {
	switch {
	case k == 0:
		return s.defaultK
	case k > s.maxK:
		return s.maxK
	}
	return k
}

// Film returns the catalogue entry for id with its top weighted terms.
func (s *Service) Film(id string) (FilmInfo, error) {
	film, ok := s.catalog.Film(id)
	if !ok {
		return FilmInfo{}, fmt.Errorf("%w: %q", apperrors.ErrDocumentNotFound, id)
	}
	ord, _ := s.ranker.Model().Store().Lookup(id)
	return FilmInfo{Film: film, TopTerms: s.ranker.Model().TopTerms(ord, topTermsShown)}, nil
}

// FindByTitle resolves a title, exact matches first.
func (s *Service) FindByTitle(title string) (corpus.Film, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return corpus.Film{}, fmt.Errorf("empty title: %w", apperrors.ErrInvalidInput)
	}
	film, ok := s.catalog.FindByTitle(title)
	if !ok {
		return corpus.Film{}, fmt.Errorf("%w: no film titled %q", apperrors.ErrDocumentNotFound, title)
	}
	return film, nil
}

// SimilarTo ranks the films most similar to id.
func (s *Service) SimilarTo(ctx context.Context, id string, k int) (*Result, error) {
	query := []string{id}
	return s.run(ctx, analytics.ModeSingle, query, k, func() ([]ranker.ScoredDoc, error) {
		return s.ranker.RankSingle(id, k)
	})
}

// SimilarToSet ranks the films closest on average to every film in ids.
func (s *Service) SimilarToSet(ctx context.Context, ids []string, k int) (*Result, error) {
	return s.run(ctx, analytics.ModeSet, ids, k, func() ([]ranker.ScoredDoc, error) {
		return s.ranker.RankFromSet(ids, k)
	})
}

// Search ranks films against a free-text prompt.
func (s *Service) Search(ctx context.Context, prompt string, k int) (*Result, error) {
	return s.run(ctx, analytics.ModePrompt, []string{prompt}, k, func() ([]ranker.ScoredDoc, error) {
		return s.ranker.RankByPrompt(prompt, k)
	})
}

func (s *Service) run(
	ctx context.Context,
	mode analytics.Mode,
	query []string,
	k int,
	compute func() ([]ranker.ScoredDoc, error),
) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	if k < 0 {
		s.observeFailure(mode, "invalid")
		return nil, fmt.Errorf("k must not be negative, got %d: %w", k, apperrors.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		s.observeFailure(mode, "timeout")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}

	var (
		docs []ranker.ScoredDoc
		hit  bool
		err  error
	)
	if s.cache != nil {
		key := cache.Key{Namespace: s.namespace, Mode: string(mode), Args: query, K: k}
		docs, hit, err = s.cache.GetOrCompute(ctx, key, compute)
	} else {
		docs, err = compute()
	}
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, apperrors.ErrDocumentNotFound):
			outcome = "not_found"
		case errors.Is(err, apperrors.ErrInvalidInput):
			outcome = "invalid"
		}
		s.observeFailure(mode, outcome)
		log.Warn("rank query failed", "mode", mode, "query", query, "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	result := &Result{
		Mode:      mode,
		Query:     query,
		K:         k,
		Results:   s.enrich(docs),
		CacheHit:  hit,
		LatencyMs: elapsed.Milliseconds(),
	}
	s.observeSuccess(mode, hit, len(docs), elapsed)
	log.Info("rank query completed",
		"mode", mode,
		"k", k,
		"results", len(docs),
		"cache_hit", hit,
		"latency_ms", result.LatencyMs,
	)

	if s.tracker != nil {
		event := analytics.RankEvent{
			Type:      analytics.EventRank,
			Mode:      mode,
			Query:     query,
			K:         k,
			Returned:  len(docs),
			LatencyMs: result.LatencyMs,
			CacheHit:  hit,
			Timestamp: time.Now().UTC(),
		}
		if len(docs) > 0 {
			event.TopDocID = docs[0].DocID
			event.TopScore = docs[0].Score
		}
		event.RequestID = logger.RequestID(ctx)
		s.tracker.Track(event)
	}
	return result, nil
}

func (s *Service) enrich(docs []ranker.ScoredDoc) []Recommendation {
	out := make([]Recommendation, len(docs))
	for i, d := range docs {
		rec := Recommendation{ID: d.DocID, Score: d.Score}
		if film, ok := s.catalog.Film(d.DocID); ok {
			rec.Title = film.PrimaryTitle
			rec.Year = film.StartYear
			rec.Genres = film.Genres
			rec.Rating = film.AverageRating
		}
		out[i] = rec
	}
	return out
}

func (s *Service) observeSuccess(mode analytics.Mode, hit bool, returned int, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
		s.metrics.CacheHitsTotal.Inc()
	} else if s.cache != nil {
		s.metrics.CacheMissesTotal.Inc()
	}
	if s.cache == nil {
		status = "disabled"
	}
	s.metrics.RankQueriesTotal.WithLabelValues(string(mode), "ok").Inc()
	s.metrics.RankLatency.WithLabelValues(string(mode), status).Observe(elapsed.Seconds())
	s.metrics.RankResultsCount.WithLabelValues(string(mode)).Observe(float64(returned))
}

func (s *Service) observeFailure(mode analytics.Mode, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RankQueriesTotal.WithLabelValues(string(mode), outcome).Inc()
}

// InvalidateCache drops every cached result.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// CacheStats returns hit and miss counts; enabled is false when no cache is
// configured.
func (s *Service) CacheStats() (hits, misses int64, enabled bool) {
	if s.cache == nil {
		return 0, 0, false
	}
	hits, misses = s.cache.Stats()
	return hits, misses, true
}

// RankerConfig translates the similarity section of the configuration.
func RankerConfig(c config.SimilarityConfig) ranker.Config {
	return ranker.Config{
		ContentWeight:      c.ContentWeight,
		CategoryWeight:     c.CategoryWeight,
		CategoryPolicy:     ranker.CategoryPolicy(c.CategoryPolicy),
		GenreBoostPerMatch: c.GenreBoostPerMatch,
		Workers:            c.Workers,
	}
}
