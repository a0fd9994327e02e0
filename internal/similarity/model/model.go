// Package model derives the TF-IDF vector space from a built document
// store. A Model is computed once and never changes; a different corpus
// needs a new Store and a new Model.
package model

import (
	"log/slog"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/store"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/tokenizer"
)

const progressEvery = 1000

// Model holds one weight vector per document plus the frozen IDF table.
type Model struct {
	store   *store.Store
	idf     map[string]float64
	vectors []Vector
}

// Build computes the weight vector and magnitude of every document in s.
func Build(s *store.Store) *Model {
	logger := slog.Default().With("component", "similarity-model")
	start := time.Now()

	vocab := s.Vocabulary()
	idf := make(map[string]float64, len(vocab))
	for _, term := range vocab {
		idf[term] = s.InverseDocumentFrequency(term)
	}

	m := &Model{
		store:   s,
		idf:     idf,
		vectors: make([]Vector, s.Len()),
	}
	zero := 0
	for ord := 0; ord < s.Len(); ord++ {
		weights := make(map[string]float64, len(s.Terms(ord)))
		for term, tf := range s.Terms(ord) {
			if w := float64(tf) * idf[term]; w > 0 {
				weights[term] = w
			}
		}
		m.vectors[ord] = newVector(weights)
		if m.vectors[ord].Magnitude() == 0 {
			zero++
		}
		if done := ord + 1; done%progressEvery == 0 || done == s.Len() {
			logger.Debug("weight vectors progress",
				"processed", done,
				"total", s.Len(),
				"pct", 100*float64(done)/float64(s.Len()),
			)
		}
	}
	logger.Info("similarity model built",
		"docs", s.Len(),
		"terms", len(vocab),
		"zero_magnitude", zero,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return m
}

// Store returns the corpus the model was built from.
func (m *Model) Store() *store.Store {
	return m.store
}

// IDF returns the frozen inverse document frequency of term, 0 if unknown.
func (m *Model) IDF(term string) float64 {
	return m.idf[term]
}

// Weights returns the weight vector of the document at ord.
func (m *Model) Weights(ord int) Vector {
	return m.vectors[ord]
}

// Magnitude returns the Euclidean norm of the document at ord.
func (m *Model) Magnitude(ord int) float64 {
	return m.vectors[ord].Magnitude()
}

// CosineSimilarity returns the cosine similarity of two documents. A
// document compared with itself scores exactly 1 unless its magnitude is 0.
func (m *Model) CosineSimilarity(a, b int) float64 {
	if a == b && m.vectors[a].Magnitude() > 0 {
		return 1
	}
	return Cosine(m.vectors[a], m.vectors[b])
}

// Query is a vectorised free-text prompt. It is never added to the corpus.
type Query struct {
	Text   string
	Vector Vector
}

// Terms returns the query terms that carry weight, in lexical order.
func (q Query) Terms() []string {
	terms := make([]string, 0, q.Vector.Len())
	for _, e := range q.Vector.Entries() {
		terms = append(terms, e.Term)
	}
	return terms
}

// VectorizeQuery weighs text against the corpus statistics. Terms the
// corpus has never seen get IDF 0 and are dropped.
func (m *Model) VectorizeQuery(text string) Query {
	weights := make(map[string]float64)
	for term, tf := range tokenizer.TermFrequencies(text) {
		if w := float64(tf) * m.idf[term]; w > 0 {
			weights[term] = w
		}
	}
	return Query{Text: text, Vector: newVector(weights)}
}

// Candidates returns the documents sharing at least one weighted term with
// q. Every other document has cosine 0 against q.
func (m *Model) Candidates(q Query) *roaring.Bitmap {
	return m.store.ContainingAny(q.Terms())
}

// CosineQuery returns the cosine similarity between q and the document at
// ord.
func (m *Model) CosineQuery(q Query, ord int) float64 {
	return Cosine(q.Vector, m.vectors[ord])
}

// TopTerms returns the n heaviest terms of the document at ord, heaviest
// first. Ties are broken lexically.
func (m *Model) TopTerms(ord, n int) []Entry {
	entries := append([]Entry(nil), m.vectors[ord].Entries()...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Weight > entries[j].Weight
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
