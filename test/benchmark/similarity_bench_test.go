// Package benchmark contains Go benchmarks for the similarity engine:
// corpus indexing, model construction, the three ranking modes and table
// precomputation.
package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/model"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/store"
)

var (
	vocabulary = strings.Fields(`robot love war city ocean detective memory music family
		space ship crew island murder secret king queen dragon forest village school
		pilot student doctor hospital heist bank train storm mountain desert river
		soldier spy letter journey dream night ghost house wedding summer winter`)
	genres = []string{"Action", "Comedy", "Drama", "Romance", "Sci-Fi", "Horror", "Thriller", "Animation"}
)

// syntheticDocs returns n reproducible documents of 25 to 60 words.
func syntheticDocs(n int) []store.Document {
	rng := rand.New(rand.NewSource(42))
	docs := make([]store.Document, n)
	for i := range docs {
		words := make([]string, 25+rng.Intn(36))
		for j := range words {
			words[j] = vocabulary[rng.Intn(len(vocabulary))]
		}
		tags := []string{genres[rng.Intn(len(genres))], genres[rng.Intn(len(genres))]}
		docs[i] = store.Document{
			ID:   fmt.Sprintf("tt%07d", i),
			Body: strings.Join(words, " "),
			Tags: tags,
		}
	}
	return docs
}

func newRanker(b *testing.B, n int) *ranker.Ranker {
	b.Helper()
	s, err := store.Build(syntheticDocs(n))
	if err != nil {
		b.Fatal(err)
	}
	r, err := ranker.New(model.Build(s), ranker.DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	return r
}

func BenchmarkStoreBuild(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		docs := syntheticDocs(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := store.Build(docs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkModelBuild(b *testing.B) {
	s, err := store.Build(syntheticDocs(10000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := model.Build(s)
		_ = m
	}
}

func BenchmarkRankSingle(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		r := newRanker(b, n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := r.RankSingle(fmt.Sprintf("tt%07d", i%n), 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRankSingleFromTable(b *testing.B) {
	r := newRanker(b, 1000)
	t, err := r.Precompute(context.Background(), 0.1)
	if err != nil {
		b.Fatal(err)
	}
	if err := r.UseTable(t); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.RankSingle(fmt.Sprintf("tt%07d", i%1000), 10); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRankFromSet(b *testing.B) {
	r := newRanker(b, 10000)
	ids := []string{"tt0000001", "tt0000500", "tt0004000"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.RankFromSet(ids, 10); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRankByPrompt(b *testing.B) {
	r := newRanker(b, 10000)
	prompts := map[string]string{
		"short": "robot love",
		"long":  "a sci-fi drama about a space crew whose ship is haunted by a ghost from a forgotten war",
	}
	for name, prompt := range prompts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := r.RankByPrompt(prompt, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPrecompute(b *testing.B) {
	r := newRanker(b, 500)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Precompute(context.Background(), 0.2); err != nil {
			b.Fatal(err)
		}
	}
}
