// Package ranker blends textual cosine similarity with categorical tag
// overlap and produces top-K film rankings for a single film, a set of
// films, or a free-text prompt.
package ranker

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

// ScoredDoc is one ranked result.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Config weighs the two similarity signals.
type Config struct {
	ContentWeight      float64
	CategoryWeight     float64
	CategoryPolicy     CategoryPolicy
	GenreBoostPerMatch float64
	// Workers bounds the goroutines used by Precompute; <= 0 means one per CPU.
	Workers int
}

// DefaultConfig mirrors the 80/20 content/genre blend.
func DefaultConfig() Config {
	return Config{
		ContentWeight:      0.8,
		CategoryWeight:     0.2,
		CategoryPolicy:     Asymmetric,
		GenreBoostPerMatch: 0.05,
	}
}

// Validate rejects weight combinations that cannot produce a ranking.
func (c Config) Validate() error {
	switch {
	case isBad(c.ContentWeight) || isBad(c.CategoryWeight):
		return fmt.Errorf("weights must be finite and non-negative: %w", apperrors.ErrInvalidInput)
	case c.ContentWeight == 0 && c.CategoryWeight == 0:
		return fmt.Errorf("content and category weights are both zero: %w", apperrors.ErrInvalidInput)
	case isBad(c.GenreBoostPerMatch):
		return fmt.Errorf("genre boost must be finite and non-negative: %w", apperrors.ErrInvalidInput)
	}
	if _, err := ParseCategoryPolicy(string(c.CategoryPolicy)); err != nil {
		return err
	}
	return nil
}

func isBad(f float64) bool {
	return f < 0 || math.IsNaN(f) || math.IsInf(f, 0)
}

// Ranker scores documents of one model. It is safe for concurrent use; the
// only mutable state is the optional precomputed table.
type Ranker struct {
	model     *model.Model
	cfg       Config
	tags      []tagSet
	lowerTags [][]string
	table     atomic.Pointer[Table]
	logger    *slog.Logger
}

// New builds the categorical tag index and returns a Ranker over m.
func New(m *model.Model, cfg Config) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.CategoryPolicy, _ = ParseCategoryPolicy(string(cfg.CategoryPolicy))
	s := m.Store()
	r := &Ranker{
		model:     m,
		cfg:       cfg,
		tags:      make([]tagSet, s.Len()),
		lowerTags: make([][]string, s.Len()),
		logger:    slog.Default().With("component", "ranker"),
	}
	for ord := 0; ord < s.Len(); ord++ {
		tags := s.Doc(ord).Tags
		r.tags[ord] = newTagSet(tags)
		lower := make([]string, 0, len(tags))
		for _, tag := range tags {
			if strings.TrimSpace(tag) == "" {
				continue
			}
			lower = append(lower, strings.ToLower(tag))
		}
		r.lowerTags[ord] = lower
	}
	return r, nil
}

// Config returns the weights in use.
func (r *Ranker) Config() Config {
	return r.cfg
}

// Model returns the underlying similarity model.
func (r *Ranker) Model() *model.Model {
	return r.model
}

func (r *Ranker) combined(ref, cand int) float64 {
	content := r.model.CosineSimilarity(ref, cand)
	category := overlap(r.cfg.CategoryPolicy, r.tags[ref], r.tags[cand])
	return r.cfg.ContentWeight*content + r.cfg.CategoryWeight*category
}

// CombinedScore returns the blended similarity of candidate to reference.
// Under the asymmetric policy the order of the arguments matters.
func (r *Ranker) CombinedScore(referenceID, candidateID string) (float64, error) {
	ref, err := r.resolve(referenceID)
	if err != nil {
		return 0, err
	}
	cand, err := r.resolve(candidateID)
	if err != nil {
		return 0, err
	}
	return r.combined(ref, cand), nil
}

// RankSingle returns the k documents most similar to id, excluding id
// itself. A loaded table row is used when it yields the same answer.
func (r *Ranker) RankSingle(id string, k int) ([]ScoredDoc, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	ref, err := r.resolve(id)
	if err != nil {
		return nil, err
	}
	if row, ok := r.table.Load().row(ref, k); ok {
		r.logger.Debug("rank single served from table", "doc_id", id, "k", k)
		return r.toScored(row), nil
	}
	return r.toScored(selectTop(r.scoreAgainst(ref), k)), nil
}

func (r *Ranker) scoreAgainst(ref int) []candidate {
	n := r.model.Store().Len()
	cands := make([]candidate, 0, n)
	for ord := 0; ord < n; ord++ {
		if ord == ref {
			continue
		}
		cands = append(cands, candidate{ord: ord, score: r.combined(ref, ord)})
	}
	return cands
}

// RankFromSet ranks every document outside ids by its mean combined score
// against the members of ids. Repeated ids count once; an empty set yields
// an empty ranking.
func (r *Ranker) RankFromSet(ids []string, k int) ([]ScoredDoc, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	refs := make([]int, 0, len(ids))
	inSet := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		ord, err := r.resolve(id)
		if err != nil {
			return nil, err
		}
		if _, dup := inSet[ord]; dup {
			continue
		}
		inSet[ord] = struct{}{}
		refs = append(refs, ord)
	}
	if len(refs) == 0 {
		return []ScoredDoc{}, nil
	}

	n := r.model.Store().Len()
	cands := make([]candidate, 0, n)
	for ord := 0; ord < n; ord++ {
		if _, skip := inSet[ord]; skip {
			continue
		}
		var total float64
		for _, ref := range refs {
			total += r.combined(ref, ord)
		}
		cands = append(cands, candidate{ord: ord, score: total / float64(len(refs))})
	}
	return r.toScored(selectTop(cands, k)), nil
}

// RankByPrompt ranks every document by cosine similarity to text plus a
// bonus for each of its tags that appears, case-insensitively, inside text.
// Scores are clamped to [0, 1].
func (r *Ranker) RankByPrompt(text string, k int) ([]ScoredDoc, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	q := r.model.VectorizeQuery(text)
	matches := r.model.Candidates(q)
	prompt := strings.ToLower(text)

	n := r.model.Store().Len()
	cands := make([]candidate, 0, n)
	for ord := 0; ord < n; ord++ {
		var score float64
		if matches.Contains(uint32(ord)) {
			score = r.model.CosineQuery(q, ord)
		}
		matched := 0
		for _, tag := range r.lowerTags[ord] {
			if strings.Contains(prompt, tag) {
				matched++
			}
		}
		score += float64(matched) * r.cfg.GenreBoostPerMatch
		cands = append(cands, candidate{ord: ord, score: math.Max(0, math.Min(score, 1))})
	}
	r.logger.Debug("prompt vectorised",
		"terms", q.Vector.Len(),
		"text_matches", matches.GetCardinality(),
	)
	return r.toScored(selectTop(cands, k)), nil
}

func (r *Ranker) resolve(id string) (int, error) {
	ord, ok := r.model.Store().Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrDocumentNotFound, id)
	}
	return ord, nil
}

func (r *Ranker) toScored(cands []candidate) []ScoredDoc {
	s := r.model.Store()
	out := make([]ScoredDoc, len(cands))
	for i, c := range cands {
		out[i] = ScoredDoc{DocID: s.Doc(c.ord).ID, Score: c.score}
	}
	return out
}

func checkK(k int) error {
	if k < 0 {
		return fmt.Errorf("k must not be negative, got %d: %w", k, apperrors.ErrInvalidInput)
	}
	return nil
}
