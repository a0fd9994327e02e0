// Package store holds the fixed film corpus and its inverted index. A Store
// is built once from an ordered list of documents and is read-only
// afterwards: every term-frequency table is computed at construction time
// and documents are addressed by their ordinal in the corpus.
package store

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

// Document is a single corpus member. An empty Body means the text is
// unavailable; such documents are still ranked by their tags.
type Document struct {
	ID   string
	Body string
	Tags []string
}

// Store is the immutable corpus plus its inverted index.
type Store struct {
	docs       []Document
	ordinals   map[string]int
	termFreqs  []map[string]int
	index      map[string]*roaring.Bitmap
	vocabulary []string
	tokens     int
}

// Build indexes docs in the given order. Ordinals follow that order. It
// fails only when two documents share an identifier.
func Build(docs []Document) (*Store, error) {
	s := &Store{
		docs:      make([]Document, len(docs)),
		ordinals:  make(map[string]int, len(docs)),
		termFreqs: make([]map[string]int, len(docs)),
		index:     make(map[string]*roaring.Bitmap),
	}
	emptyBodies := 0
	for ord, doc := range docs {
		if _, dup := s.ordinals[doc.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %q: %w", doc.ID, apperrors.ErrInvalidInput)
		}
		doc.Tags = append([]string(nil), doc.Tags...)
		s.docs[ord] = doc
		s.ordinals[doc.ID] = ord

		freqs := tokenizer.TermFrequencies(doc.Body)
		s.termFreqs[ord] = freqs
		if len(freqs) == 0 {
			emptyBodies++
		}
		for term, tf := range freqs {
			bm, ok := s.index[term]
			if !ok {
				bm = roaring.NewBitmap()
				s.index[term] = bm
			}
			bm.Add(uint32(ord))
			s.tokens += tf
		}
	}
	s.vocabulary = make([]string, 0, len(s.index))
	for term, bm := range s.index {
		bm.RunOptimize()
		s.vocabulary = append(s.vocabulary, term)
	}
	sort.Strings(s.vocabulary)

	slog.Default().With("component", "document-store").Info("document store built",
		"docs", len(s.docs),
		"terms", len(s.vocabulary),
		"tokens", s.tokens,
		"empty_bodies", emptyBodies,
	)
	return s, nil
}

// Len returns the corpus size.
func (s *Store) Len() int {
	return len(s.docs)
}

// Doc returns the document at ordinal ord.
func (s *Store) Doc(ord int) Document {
	return s.docs[ord]
}

// Lookup resolves a document identifier to its ordinal.
func (s *Store) Lookup(id string) (int, bool) {
	ord, ok := s.ordinals[id]
	return ord, ok
}

// Vocabulary returns every indexed term in lexical order. The slice is
// shared and must not be modified.
func (s *Store) Vocabulary() []string {
	return s.vocabulary
}

// TotalTokens returns the number of terms across all bodies, duplicates
// included.
func (s *Store) TotalTokens() int {
	return s.tokens
}

// TermFrequency returns how often term occurs in the document at ord, or 0.
func (s *Store) TermFrequency(ord int, term string) int {
	return s.termFreqs[ord][term]
}

// Terms returns the distinct terms of the document at ord with their
// frequencies. The map is shared and must not be modified.
func (s *Store) Terms(ord int) map[string]int {
	return s.termFreqs[ord]
}

// DocumentFrequency returns the number of documents containing term, or 0
// when the term was never seen.
func (s *Store) DocumentFrequency(term string) int {
	bm, ok := s.index[term]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// InverseDocumentFrequency returns log10(N/DF) for an indexed term and 0 for
// an unknown one. A term present in every document therefore weighs 0.
func (s *Store) InverseDocumentFrequency(term string) float64 {
	bm, ok := s.index[term]
	if !ok {
		return 0
	}
	df := bm.GetCardinality()
	if df == 0 {
		panic(fmt.Sprintf("store: indexed term %q has no documents", term))
	}
	return math.Log10(float64(len(s.docs)) / float64(df))
}

// Postings returns the ordinals of the documents containing term, in
// ascending order. Unknown terms yield nil.
func (s *Store) Postings(term string) []int {
	bm, ok := s.index[term]
	if !ok {
		return nil
	}
	ords := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ords = append(ords, int(it.Next()))
	}
	return ords
}

// ContainingAny returns a new bitmap of the documents that contain at least
// one of terms. The caller owns the result.
func (s *Store) ContainingAny(terms []string) *roaring.Bitmap {
	bms := make([]*roaring.Bitmap, 0, len(terms))
	for _, term := range terms {
		if bm, ok := s.index[term]; ok {
			bms = append(bms, bm)
		}
	}
	if len(bms) == 0 {
		return roaring.NewBitmap()
	}
	return roaring.FastOr(bms...)
}

// ParseTags splits a comma-separated category string into trimmed tags.
// Case is preserved; empty entries and repeats are dropped.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
