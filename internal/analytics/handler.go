package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTop = 100

// SnapshotSource returns the most recently persisted stats, or nil when none
// has been saved yet.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
}

// Handler serves aggregated ranking statistics over HTTP.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotSource
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// WithSnapshots enables the Snapshot endpoint.
func (h *Handler) WithSnapshots(src SnapshotSource) *Handler {
	h.snapshots = src
	return h
}

// Stats serves the live aggregate. ?top=N trims the leaderboards to N rows.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top, ok := topParam(r)
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be an integer between 0 and 100"})
		return
	}
	stats := h.aggregator.Stats()
	stats.TopFilms = trim(stats.TopFilms, top)
	stats.TopPrompts = trim(stats.TopPrompts, top)
	stats.TopRecommended = trim(stats.TopRecommended, top)
	h.writeJSON(w, http.StatusOK, stats)
}

// Snapshot serves the latest persisted aggregate.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots are disabled"})
		return
	}
	stats, err := h.snapshots.LatestSnapshot(r.Context())
	switch {
	case err != nil:
		h.logger.Error("loading analytics snapshot failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot unavailable"})
	case stats == nil:
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot saved yet"})
	default:
		h.writeJSON(w, http.StatusOK, stats)
	}
}

func topParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("top")
	if raw == "" {
		return -1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxTop {
		return 0, false
	}
	return n, true
}

// trim keeps the first n rows; a negative n keeps everything.
func trim(rows []QueryCount, n int) []QueryCount {
	if n < 0 || len(rows) <= n {
		return rows
	}
	return rows[:n]
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
