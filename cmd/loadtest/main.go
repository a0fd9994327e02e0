// Command loadtest drives a running film similarity service with a mix of
// single-film, multi-film and prompt queries and reports latency, status
// codes and the share of responses served from the result cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/corpus"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	K           int
	FilmIDs     []string
	Prompts     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	latencies     map[string][]time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(mode string, duration time.Duration, statusCode int, cacheHit bool, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies[mode] = append(s.latencies[mode], duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	s.statusCodes[statusCode]++
	s.statusCodesMu.Unlock()
}

var defaultPrompts = []string{
	"a sci-fi adventure with robots and space travel",
	"romantic comedy in paris",
	"a detective solving a murder in a small town",
	"animated family film about friendship",
	"war drama about soldiers coming home",
	"heist thriller with a bank robbery",
	"haunted house horror",
	"coming of age story at school",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the film similarity service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	k := flag.Int("k", 10, "results requested per query")
	corpusPath := flag.String("corpus", "", "films CSV to draw film ids from; prompts only when empty")
	sample := flag.Int("films", 200, "number of film ids to sample from the corpus")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		K:           *k,
		Prompts:     defaultPrompts,
	}
	if *corpusPath != "" {
		catalog, err := corpus.Load(*corpusPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading corpus: %v\n", err)
			os.Exit(1)
		}
		cfg.FilmIDs = sampleIDs(catalog.Films(), *sample)
	}

	fmt.Println("=== Film Similarity Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Film ids:    %d\n", len(cfg.FilmIDs))
	fmt.Printf("Prompts:     %d\n", len(cfg.Prompts))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// sampleIDs picks n ids spread evenly over the catalogue.
func sampleIDs(films []corpus.Film, n int) []string {
	if n <= 0 || len(films) == 0 {
		return nil
	}
	step := max(len(films)/n, 1)
	ids := make([]string, 0, n)
	for i := 0; i < len(films) && len(ids) < n; i += step {
		ids = append(ids, films[i].ID)
	}
	return ids
}

// request is one query of the mix.
type request struct {
	mode string
	req  func(ctx context.Context) (*http.Request, error)
}

// nextRequest cycles through single, set and prompt queries. Without film
// ids only prompt queries are sent.
func nextRequest(cfg Config, i int) request {
	if len(cfg.FilmIDs) == 0 || i%3 == 2 {
		prompt := cfg.Prompts[i%len(cfg.Prompts)]
		return request{mode: "prompt", req: func(ctx context.Context) (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/search?q=%s&k=%d", cfg.BaseURL, url.QueryEscape(prompt), cfg.K)
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		}}
	}
	id := cfg.FilmIDs[i%len(cfg.FilmIDs)]
	if i%3 == 0 {
		return request{mode: "single", req: func(ctx context.Context) (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/films/%s/similar?k=%d", cfg.BaseURL, id, cfg.K)
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		}}
	}
	other := cfg.FilmIDs[(i*7+1)%len(cfg.FilmIDs)]
	return request{mode: "set", req: func(ctx context.Context) (*http.Request, error) {
		body, _ := json.Marshal(map[string]any{"ids": []string{id, other}, "k": cfg.K})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/similar", strings.NewReader(string(body)))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, err
	}}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ctx.Err() == nil; i += cfg.Concurrency {
				next := nextRequest(cfg, i)
				req, err := next.req(ctx)
				if err != nil {
					stats.RecordRequest(next.mode, 0, 0, false, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(next.mode, elapsed, 0, false, err)
					}
					continue
				}
				var body struct {
					CacheHit bool `json:"cache_hit"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&body)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(next.mode, elapsed, resp.StatusCode, body.CacheHit, nil)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	modes := make([]string, 0, len(stats.latencies))
	for mode := range stats.latencies {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		latencies := append([]time.Duration(nil), stats.latencies[mode]...)
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l) - float64(avg)
			sumSquared += diff * diff
		}

		fmt.Println()
		fmt.Printf("=== Latency (%s, %d requests) ===\n", mode, len(latencies))
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}
	stats.latenciesMu.Unlock()

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
