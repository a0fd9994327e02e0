package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/corpus"
)

func TestNextRequest(t *testing.T) {
	cfg := Config{BaseURL: "http://svc", K: 5, FilmIDs: []string{"tt01", "tt02"}, Prompts: []string{"space robots"}}
	tests := []struct {
		i      int
		mode   string
		method string
		path   string
	}{
		{0, "single", http.MethodGet, "/api/v1/films/tt01/similar"},
		{1, "set", http.MethodPost, "/api/v1/similar"},
		{2, "prompt", http.MethodGet, "/api/v1/search"},
	}
	for _, tt := range tests {
		next := nextRequest(cfg, tt.i)
		req, err := next.req(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if next.mode != tt.mode || req.Method != tt.method || req.URL.Path != tt.path {
			t.Errorf("request %d = %s %s %s", tt.i, next.mode, req.Method, req.URL.Path)
		}
	}

	promptOnly := nextRequest(Config{BaseURL: "http://svc", K: 3, Prompts: []string{"space robots"}}, 0)
	req, _ := promptOnly.req(context.Background())
	if promptOnly.mode != "prompt" || req.URL.Query().Get("q") != "space robots" {
		t.Errorf("prompt-only request = %s %s", promptOnly.mode, req.URL)
	}
}

func TestSampleIDs(t *testing.T) {
	films := make([]corpus.Film, 10)
	for i := range films {
		films[i].ID = string(rune('a' + i))
	}
	if got := sampleIDs(films, 3); len(got) != 3 || got[0] != "a" || got[1] != "d" {
		t.Errorf("sampleIDs(10, 3) = %v", got)
	}
	if got := sampleIDs(films, 50); len(got) != 10 {
		t.Errorf("sampleIDs(10, 50) = %v", got)
	}
	if got := sampleIDs(nil, 5); got != nil {
		t.Errorf("sampleIDs(nil) = %v", got)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{{50, 5}, {95, 10}, {0, 1}, {100, 10}}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
