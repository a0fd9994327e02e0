package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
)

const films = `tconst,primaryTitle,originalTitle,isAdult,startYear,runtimeMinutes,genres,averageRating,synopsis
tt01,Robot Dreams,Robot Dreams,0,2023,102,"Sci-Fi,Animation",7.6,A lonely robot builds a friend in the city.
tt02,Steel Hearts,Steel Hearts,0,2019,95,"Sci-Fi,Action",6.1,A robot soldier fights for the city.
tt03,Ocean Letters,Ocean Letters,0,2001,110,"Romance,Drama",7.0,Two lovers write letters across the ocean.
tt04,Harbor Lights,Harbor Lights,0,1998,99,Romance,6.8,A lighthouse keeper falls in love by the ocean.
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	catalog, err := corpus.Parse(strings.NewReader(films))
	if err != nil {
		t.Fatal(err)
	}
	svc, err := recommender.Build(catalog, ranker.DefaultConfig(), recommender.Options{DefaultLimit: 2, MaxResults: 3})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(svc).Routes(5 * time.Second))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding %s %s: %v", method, url, err)
	}
	return resp.StatusCode, out
}

func resultIDs(body map[string]any) []string {
	raw, _ := body["results"].([]any)
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		ids = append(ids, r.(map[string]any)["id"].(string))
	}
	return ids
}

func TestHandler_Routes(t *testing.T) {
	srv := newServer(t)
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name: "similar default limit", method: http.MethodGet, path: "/films/tt01/similar",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				ids := resultIDs(body)
				if len(ids) != 2 || ids[0] != "tt02" {
					t.Errorf("results = %v", ids)
				}
			},
		},
		{
			name: "similar capped at max", method: http.MethodGet, path: "/films/tt01/similar?k=50",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if ids := resultIDs(body); len(ids) != 3 {
					t.Errorf("results = %v", ids)
				}
			},
		},
		{
			name: "similar k zero", method: http.MethodGet, path: "/films/tt01/similar?k=0",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if ids := resultIDs(body); len(ids) != 0 {
					t.Errorf("results = %v", ids)
				}
			},
		},
		{name: "similar bad k", method: http.MethodGet, path: "/films/tt01/similar?k=-2", wantStatus: http.StatusBadRequest},
		{name: "similar unknown film", method: http.MethodGet, path: "/films/tt99/similar", wantStatus: http.StatusNotFound},
		{
			name: "set by title", method: http.MethodPost, path: "/similar",
			body:       `{"titles": ["ocean letters"], "ids": ["tt04"], "k": 3}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				ids := resultIDs(body)
				if len(ids) != 2 {
					t.Errorf("results = %v", ids)
				}
				for _, id := range ids {
					if id == "tt03" || id == "tt04" {
						t.Errorf("set member %s returned", id)
					}
				}
			},
		},
		{name: "set empty body", method: http.MethodPost, path: "/similar", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "set empty ids", method: http.MethodPost, path: "/similar", body: `{"ids": []}`, wantStatus: http.StatusBadRequest},
		{name: "set empty ids and titles", method: http.MethodPost, path: "/similar", body: `{"ids": [], "titles": []}`, wantStatus: http.StatusBadRequest},
		{name: "set blank id", method: http.MethodPost, path: "/similar", body: `{"ids": [""]}`, wantStatus: http.StatusBadRequest},
		{name: "set unknown field", method: http.MethodPost, path: "/similar", body: `{"film": "tt01"}`, wantStatus: http.StatusBadRequest},
		{name: "set unknown title", method: http.MethodPost, path: "/similar", body: `{"titles": ["zzz"]}`, wantStatus: http.StatusNotFound},
		{
			name: "search", method: http.MethodGet, path: "/search?q=love+by+the+ocean&k=1",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if ids := resultIDs(body); len(ids) != 1 || ids[0] != "tt04" {
					t.Errorf("results = %v", ids)
				}
				if body["mode"] != "prompt" {
					t.Errorf("mode = %v", body["mode"])
				}
			},
		},
		{name: "search missing q", method: http.MethodGet, path: "/search", wantStatus: http.StatusBadRequest},
		{
			name: "film info", method: http.MethodGet, path: "/films/tt03",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if body["primary_title"] != "Ocean Letters" || body["top_terms"] == nil {
					t.Errorf("body = %v", body)
				}
			},
		},
		{
			name: "find by title", method: http.MethodGet, path: "/films?title=STEEL",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if body["id"] != "tt02" {
					t.Errorf("body = %v", body)
				}
			},
		},
		{name: "find by title missing", method: http.MethodGet, path: "/films", wantStatus: http.StatusBadRequest},
		{
			name: "cache disabled", method: http.MethodGet, path: "/cache/stats",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if body["status"] != "disabled" {
					t.Errorf("body = %v", body)
				}
			},
		},
		{name: "cache invalidate disabled", method: http.MethodDelete, path: "/cache", wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestHandler_RebuildTable(t *testing.T) {
	srv := newServer(t)

	_, body := do(t, http.MethodGet, srv.URL+"/table", "")
	if body["loaded"] != false {
		t.Fatalf("table before rebuild = %v", body)
	}
	status, body := do(t, http.MethodPost, srv.URL+"/table/rebuild", "")
	if status != http.StatusOK {
		t.Fatalf("rebuild status = %d, body %v", status, body)
	}
	table := body["table"].(map[string]any)
	if table["pairs"].(float64) != 12 {
		t.Errorf("pairs = %v, want 12", table["pairs"])
	}
	_, body = do(t, http.MethodGet, srv.URL+"/table", "")
	if body["loaded"] != true {
		t.Errorf("table after rebuild = %v", body)
	}
	_, body = do(t, http.MethodGet, srv.URL+"/films/tt01/similar", "")
	if ids := resultIDs(body); len(ids) != 2 || ids[0] != "tt02" {
		t.Errorf("table-backed results = %v", ids)
	}
}
