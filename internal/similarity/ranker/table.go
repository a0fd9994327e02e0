package ranker

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

const tableProgressEvery = 100

// Table holds, per document, every other document whose combined score
// reaches a threshold, best first. Rows are keyed by ordinal of the store
// the table is bound to.
type Table struct {
	store     *store.Store
	threshold float64
	rows      map[int][]candidate
}

// TableRow is the identifier-keyed form of one table row, used to persist a
// table independently of ordinals.
type TableRow struct {
	DocID     string      `json:"doc_id"`
	Neighbors []ScoredDoc `json:"neighbors"`
}

// Threshold returns the minimum score kept in the table.
func (t *Table) Threshold() float64 {
	return t.threshold
}

// Len returns the number of documents that have a row.
func (t *Table) Len() int {
	return len(t.rows)
}

// Pairs returns the number of retained (document, neighbour) pairs.
func (t *Table) Pairs() int {
	total := 0
	for _, row := range t.rows {
		total += len(row)
	}
	return total
}

// row returns the first k entries of ord's row when they are guaranteed to
// equal an on-the-fly ranking: either the row holds every other document or
// it holds at least k entries, all of which outrank anything dropped.
func (t *Table) row(ord, k int) ([]candidate, bool) {
	if t == nil {
		return nil, false
	}
	row, ok := t.rows[ord]
	if !ok {
		return nil, false
	}
	if len(row) < k && len(row) != t.store.Len()-1 {
		return nil, false
	}
	if k < len(row) {
		row = row[:k]
	}
	return append([]candidate(nil), row...), true
}

// Rows exports the table in corpus order, keyed by document identifier.
func (t *Table) Rows() []TableRow {
	ords := make([]int, 0, len(t.rows))
	for ord := range t.rows {
		ords = append(ords, ord)
	}
	sort.Ints(ords)
	out := make([]TableRow, 0, len(ords))
	for _, ord := range ords {
		row := t.rows[ord]
		neighbors := make([]ScoredDoc, len(row))
		for i, c := range row {
			neighbors[i] = ScoredDoc{DocID: t.store.Doc(c.ord).ID, Score: c.score}
		}
		out = append(out, TableRow{DocID: t.store.Doc(ord).ID, Neighbors: neighbors})
	}
	return out
}

// LoadTable binds persisted rows to s. Rows and neighbours whose identifiers
// no longer exist in s are dropped; the number of dropped entries is
// returned.
func LoadTable(s *store.Store, threshold float64, rows []TableRow) (*Table, int) {
	t := &Table{
		store:     s,
		threshold: threshold,
		rows:      make(map[int][]candidate, len(rows)),
	}
	dropped := 0
	for _, row := range rows {
		ord, ok := s.Lookup(row.DocID)
		if !ok {
			dropped += 1 + len(row.Neighbors)
			continue
		}
		cands := make([]candidate, 0, len(row.Neighbors))
		for _, n := range row.Neighbors {
			nOrd, ok := s.Lookup(n.DocID)
			if !ok || nOrd == ord {
				dropped++
				continue
			}
			cands = append(cands, candidate{ord: nOrd, score: n.Score})
		}
		sort.Slice(cands, func(i, j int) bool { return outranks(cands[i], cands[j]) })
		t.rows[ord] = cands
	}
	return t, dropped
}

// Precompute scores every ordered pair of distinct documents and keeps the
// pairs scoring at least threshold. Rows are computed independently on a
// bounded worker pool; the model is read-only so no locking is needed.
func (r *Ranker) Precompute(ctx context.Context, threshold float64) (*Table, error) {
	if math.IsNaN(threshold) {
		return nil, fmt.Errorf("threshold is NaN: %w", apperrors.ErrInvalidInput)
	}
	s := r.model.Store()
	n := s.Len()
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	r.logger.Info("building similarity table", "threshold", threshold, "docs", n, "workers", workers)

	rows := make([][]candidate, n)
	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for ord := 0; ord < n; ord++ {
		ord := ord
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cands := r.scoreAgainst(ord)
			kept := cands[:0]
			for _, c := range cands {
				if c.score >= threshold {
					kept = append(kept, c)
				}
			}
			rows[ord] = selectTop(kept, len(kept))
			if done := processed.Add(1); done%tableProgressEvery == 0 || done == int64(n) {
				r.logger.Debug("similarity table progress",
					"processed", done,
					"total", n,
					"pct", 100*float64(done)/float64(n),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("precomputing similarity table: %w", err)
	}

	t := &Table{store: s, threshold: threshold, rows: make(map[int][]candidate, n)}
	for ord, row := range rows {
		t.rows[ord] = row
	}
	r.logger.Info("similarity table built",
		"docs", n,
		"pairs", t.Pairs(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return t, nil
}

// UseTable makes RankSingle consult t. Passing nil detaches the current
// table. t must have been built or loaded against this ranker's store.
func (r *Ranker) UseTable(t *Table) error {
	if t != nil && t.store != r.model.Store() {
		return fmt.Errorf("table belongs to a different corpus: %w", apperrors.ErrInvalidInput)
	}
	r.table.Store(t)
	return nil
}

// Table returns the table RankSingle currently consults, or nil.
func (r *Ranker) Table() *Table {
	return r.table.Load()
}
