package recommender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/tablestore"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/tracing"
)

// TableInfo returns a description of the active similarity table.
func (s *Service) TableInfo() TableInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// RebuildTable precomputes the similarity table, switches the ranker to it
// and persists it. Concurrent callers share one build. A persistence
// failure is returned but the new table stays active.
func (s *Service) RebuildTable(ctx context.Context) (TableInfo, error) {
	v, err, shared := s.rebuilds.Do("rebuild", func() (interface{}, error) {
		return s.rebuild(ctx)
	})
	if shared {
		s.logger.Debug("joined in-flight table rebuild")
	}
	info, _ := v.(TableInfo)
	return info, err
}

func (s *Service) rebuild(ctx context.Context) (info TableInfo, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "table.rebuild")
	defer func() {
		span.End(err)
		span.Log(s.logger)
	}()

	_, build := tracing.Start(ctx, "precompute")
	t, err := s.ranker.Precompute(ctx, s.threshold)
	build.End(err)
	if err != nil {
		s.observeBuild("failed", time.Since(start))
		return TableInfo{}, err
	}
	if err := s.ranker.UseTable(t); err != nil {
		s.observeBuild("failed", time.Since(start))
		return TableInfo{}, err
	}
	docs := s.ranker.Model().Store().Len()
	snap := tablestore.SnapshotOf(t, docs, s.namespace)
	info = s.activate(t, snap.CreatedAt, 0)
	build.SetAttr("pairs", info.Pairs)
	elapsed := time.Since(start)

	if s.tracker != nil {
		s.tracker.Track(analytics.TableEvent{
			Type:      analytics.EventTableRebuild,
			Documents: docs,
			Pairs:     info.Pairs,
			Threshold: t.Threshold(),
			LatencyMs: elapsed.Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
	}

	_, persist := tracing.Start(ctx, "persist")
	err = s.tables.Save(ctx, snap)
	persist.End(err)
	if err != nil {
		s.observeBuild("persist_failed", elapsed)
		return info, fmt.Errorf("persisting similarity table: %w", err)
	}
	s.observeBuild("ok", elapsed)
	s.logger.Info("similarity table rebuilt", "pairs", info.Pairs, "elapsed", elapsed.Round(time.Millisecond))
	return info, nil
}

// LoadTable activates the most recently persisted table. It returns an
// error wrapping tablestore.ErrNoTable when nothing has been saved or when
// the saved table was scored under a different corpus or weighting.
func (s *Service) LoadTable(ctx context.Context) (TableInfo, error) {
	snap, err := s.tables.Load(ctx)
	if err != nil {
		return TableInfo{}, err
	}
	if snap.Fingerprint != s.namespace {
		s.logger.Warn("ignoring persisted table built for a different corpus or weighting",
			"table_fingerprint", snap.Fingerprint,
			"fingerprint", s.namespace,
			"table_documents", snap.DocCount,
		)
		return TableInfo{}, fmt.Errorf("%w: stale fingerprint %q, want %q", tablestore.ErrNoTable, snap.Fingerprint, s.namespace)
	}
	st := s.ranker.Model().Store()
	t, dropped := ranker.LoadTable(st, snap.Threshold, snap.Rows)
	if err := s.ranker.UseTable(t); err != nil {
		return TableInfo{}, err
	}
	info := s.activate(t, snap.CreatedAt, dropped)
	s.logger.Info("similarity table loaded",
		"rows", t.Len(),
		"pairs", info.Pairs,
		"dropped", dropped,
		"built_at", snap.CreatedAt,
	)
	return info, nil
}

// EnsureTable loads the persisted table, building one when none exists and
// build is set.
func (s *Service) EnsureTable(ctx context.Context, build bool) (TableInfo, error) {
	info, err := s.LoadTable(ctx)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, tablestore.ErrNoTable) {
		return TableInfo{}, fmt.Errorf("loading similarity table: %w", err)
	}
	if !build {
		s.logger.Info("no similarity table available, ranking on the fly")
		return TableInfo{}, nil
	}
	return s.RebuildTable(ctx)
}

func (s *Service) activate(t *ranker.Table, builtAt time.Time, dropped int) TableInfo {
	info := TableInfo{
		Loaded:    true,
		Documents: t.Len(),
		Pairs:     t.Pairs(),
		Threshold: t.Threshold(),
		Dropped:   dropped,
		BuiltAt:   builtAt,
	}
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.TablePairs.Set(float64(info.Pairs))
	}
	return info
}

func (s *Service) observeBuild(status string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.TableBuildsTotal.WithLabelValues(status).Inc()
	if status != "failed" {
		s.metrics.TableBuildDuration.Observe(elapsed.Seconds())
	}
}
