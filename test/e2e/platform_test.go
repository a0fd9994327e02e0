// Package e2e contains end-to-end tests that exercise a running film
// similarity service over HTTP: lookup, single-film, set and prompt
// rankings, the similarity table and the analytics it feeds.
//
// Prerequisites:
//   - cmd/server running against a film corpus
//   - optionally the analytics service (cmd/analytics) with Kafka enabled
//
// Run with:
//
//	FR_E2E_BASE_URL=http://localhost:8080 go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	BaseURL      string
	AnalyticsURL string
	K            int
}

func loadE2EConfig(t *testing.T) e2eConfig {
	t.Helper()
	base := os.Getenv("FR_E2E_BASE_URL")
	if base == "" {
		t.Skip("FR_E2E_BASE_URL not set; skipping end-to-end test")
	}
	return e2eConfig{
		BaseURL:      strings.TrimRight(base, "/"),
		AnalyticsURL: strings.TrimRight(os.Getenv("FR_E2E_ANALYTICS_URL"), "/"),
		K:            envOrDefaultInt("FR_E2E_K", 5),
	}
}

type recommendation struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type result struct {
	Mode     string           `json:"mode"`
	K        int              `json:"k"`
	Results  []recommendation `json:"results"`
	CacheHit bool             `json:"cache_hit"`
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestPlatformHealth verifies the service responds to health checks.
func TestPlatformHealth(t *testing.T) {
	cfg := loadE2EConfig(t)
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(cfg.BaseURL + path)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestSimilarFilms looks a film up by the title of the top prompt result
// and ranks its neighbours.
func TestSimilarFilms(t *testing.T) {
	cfg := loadE2EConfig(t)
	client := &http.Client{Timeout: 10 * time.Second}

	var seed result
	if code := getJSON(t, client, cfg.BaseURL+"/api/v1/search?k=1&q="+url.QueryEscape("a detective investigates a murder"), &seed); code != http.StatusOK {
		t.Fatalf("search status = %d", code)
	}
	if len(seed.Results) == 0 {
		t.Skip("corpus returned no films for the seed prompt")
	}
	film := seed.Results[0]

	var byTitle struct {
		ID string `json:"id"`
	}
	if code := getJSON(t, client, cfg.BaseURL+"/api/v1/films?title="+url.QueryEscape(film.Title), &byTitle); code != http.StatusOK {
		t.Errorf("title lookup status = %d", code)
	}

	var similar result
	path := cfg.BaseURL + "/api/v1/films/" + url.PathEscape(film.ID) + "/similar?k=" + strconv.Itoa(cfg.K)
	if code := getJSON(t, client, path, &similar); code != http.StatusOK {
		t.Fatalf("similar status = %d", code)
	}
	if len(similar.Results) > cfg.K {
		t.Errorf("got %d results for k=%d", len(similar.Results), cfg.K)
	}
	for i, rec := range similar.Results {
		if rec.ID == film.ID {
			t.Errorf("reference film %s ranked against itself", film.ID)
		}
		if rec.Score < 0 || rec.Score > 1 {
			t.Errorf("score %v outside [0, 1]", rec.Score)
		}
		if i > 0 && rec.Score > similar.Results[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}

	if len(similar.Results) >= 2 {
		body := `{"ids": ["` + similar.Results[0].ID + `", "` + similar.Results[1].ID + `"], "k": ` + strconv.Itoa(cfg.K) + `}`
		resp, err := client.Post(cfg.BaseURL+"/api/v1/similar", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("set request failed: %v", err)
		}
		defer resp.Body.Close()
		var set result
		json.NewDecoder(resp.Body).Decode(&set)
		for _, rec := range set.Results {
			if rec.ID == similar.Results[0].ID || rec.ID == similar.Results[1].ID {
				t.Errorf("set member %s returned in its own ranking", rec.ID)
			}
		}
	}
}

// TestUnknownFilm checks error mapping for a film id that does not exist.
func TestUnknownFilm(t *testing.T) {
	cfg := loadE2EConfig(t)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.BaseURL + "/api/v1/films/tt0000000-missing/similar")
	if err != nil {
		t.Skipf("service unavailable: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// TestSearchAnalytics verifies that rankings are counted by the analytics
// endpoint of the server and, when configured, the analytics service.
func TestSearchAnalytics(t *testing.T) {
	cfg := loadE2EConfig(t)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.BaseURL + "/api/v1/search?q=analytics+test")
	if err != nil {
		t.Skipf("service unavailable: %v", err)
	}
	resp.Body.Close()

	// Give time for analytics event to be collected.
	time.Sleep(2 * time.Second)

	targets := []string{cfg.BaseURL + "/api/v1/analytics"}
	if cfg.AnalyticsURL != "" {
		targets = append(targets, cfg.AnalyticsURL+"/api/v1/analytics")
	}
	for _, target := range targets {
		var stats map[string]any
		if code := getJSON(t, client, target, &stats); code != http.StatusOK {
			t.Errorf("%s status = %d", target, code)
			continue
		}
		total, _ := stats["total_queries"].(float64)
		t.Logf("%s: total_queries=%v cache_hits=%v cache_misses=%v",
			target, stats["total_queries"], stats["cache_hits"], stats["cache_misses"])
		if total < 1 {
			t.Logf("expected at least 1 query recorded at %s", target)
		}
	}
}

// TestSearchCacheStats verifies that cache statistics are reported.
func TestSearchCacheStats(t *testing.T) {
	cfg := loadE2EConfig(t)
	client := &http.Client{Timeout: 5 * time.Second}

	var stats map[string]any
	if code := getJSON(t, client, cfg.BaseURL+"/api/v1/cache/stats", &stats); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	t.Logf("cache stats: %v", stats)

	if status, ok := stats["status"]; ok && status == "disabled" {
		t.Log("cache is disabled, skipping field check")
		return
	}
	for _, field := range []string{"hits", "misses", "total", "hit_rate"} {
		if _, ok := stats[field]; !ok {
			t.Errorf("missing expected field: %s", field)
		}
	}
}

// TestTableInfo checks the similarity table endpoint reports its state.
func TestTableInfo(t *testing.T) {
	cfg := loadE2EConfig(t)
	client := &http.Client{Timeout: 5 * time.Second}

	var table struct {
		Loaded    bool    `json:"loaded"`
		Documents int     `json:"documents"`
		Pairs     int     `json:"pairs"`
		Threshold float64 `json:"threshold"`
	}
	if code := getJSON(t, client, cfg.BaseURL+"/api/v1/table", &table); code != http.StatusOK {
		t.Fatalf("table status = %d", code)
	}
	t.Logf("table: %+v", table)
	if table.Loaded && table.Documents == 0 {
		t.Error("loaded table reports zero documents")
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func getJSON(t *testing.T, client *http.Client, target string, out any) int {
	t.Helper()
	resp, err := client.Get(target)
	if err != nil {
		t.Skipf("service unavailable: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", target, err)
		}
	}
	return resp.StatusCode
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
