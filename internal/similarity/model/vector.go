package model

import (
	"math"
	"sort"
)

// Entry is one non-zero component of a weight vector.
type Entry struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Vector is a sparse TF-IDF vector. Entries are kept in lexical term order
// so every sum over a vector is accumulated in the same order.
type Vector struct {
	entries   []Entry
	lookup    map[string]float64
	magnitude float64
}

// newVector builds a Vector from term weights, dropping non-positive ones.
func newVector(weights map[string]float64) Vector {
	entries := make([]Entry, 0, len(weights))
	for term, w := range weights {
		if w > 0 {
			entries = append(entries, Entry{Term: term, Weight: w})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	lookup := make(map[string]float64, len(entries))
	var sumSquares float64
	for _, e := range entries {
		lookup[e.Term] = e.Weight
		sumSquares += e.Weight * e.Weight
	}
	return Vector{
		entries:   entries,
		lookup:    lookup,
		magnitude: math.Sqrt(sumSquares),
	}
}

// Len returns the number of non-zero components.
func (v Vector) Len() int {
	return len(v.entries)
}

// Weight returns the weight of term, or 0 when it is not part of v.
func (v Vector) Weight(term string) float64 {
	return v.lookup[term]
}

// Entries returns the components in lexical term order. The slice is shared
// and must not be modified.
func (v Vector) Entries() []Entry {
	return v.entries
}

// Magnitude returns the Euclidean norm of v.
func (v Vector) Magnitude() float64 {
	return v.magnitude
}

// Dot returns the dot product of a and b. It walks the shorter vector and
// probes the longer one; since both are term-ordered the shared terms are
// summed in the same order whichever side is shorter, so Dot(a, b) and
// Dot(b, a) are bit-identical.
func Dot(a, b Vector) float64 {
	smaller, larger := a, b
	if b.Len() < a.Len() {
		smaller, larger = b, a
	}
	var product float64
	for _, e := range smaller.entries {
		if w, ok := larger.lookup[e.Term]; ok {
			product += e.Weight * w
		}
	}
	return product
}

// Cosine returns the cosine similarity of a and b, clamped to [0, 1]. A
// zero-magnitude side makes the result 0.
func Cosine(a, b Vector) float64 {
	if a.magnitude == 0 || b.magnitude == 0 {
		return 0
	}
	sim := Dot(a, b) / (a.magnitude * b.magnitude)
	switch {
	case sim > 1:
		return 1
	case sim < 0:
		return 0
	}
	return sim
}
