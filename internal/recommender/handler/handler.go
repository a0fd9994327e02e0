// Package handler exposes the recommender over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/middleware"
)

const maxBodyBytes = 1 << 20

type similarRequest struct {
	IDs    []string `json:"ids" validate:"omitempty,max=100,dive,required"`
	Titles []string `json:"titles" validate:"omitempty,max=100,dive,required"`
	K      int      `json:"k" validate:"gte=0"`
}

// Handler exposes a recommender.Service over HTTP.
type Handler struct {
	svc      *recommender.Service
	validate *validator.Validate
	logger   *slog.Logger
}

// New returns a Handler serving svc.
func New(svc *recommender.Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default().With("component", "recommender-handler"),
	}
}

// Routes returns the API router. Query routes are bounded by
// requestTimeout; table rebuilds are not.
func (h *Handler) Routes(requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(middleware.Timeout(requestTimeout))
		}
		r.Get("/films", h.FindFilm)
		r.Get("/films/{id}", h.Film)
		r.Get("/films/{id}/similar", h.SimilarTo)
		r.Post("/similar", h.SimilarToSet)
		r.Get("/search", h.Search)
		r.Get("/table", h.TableInfo)
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.CacheInvalidate)
	})
	r.Post("/table/rebuild", h.RebuildTable)
	return r
}

func (h *Handler) SimilarTo(w http.ResponseWriter, r *http.Request) {
	k, err := h.parseK(r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	result, err := h.svc.SimilarTo(r.Context(), chi.URLParam(r, "id"), k)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// SimilarToSet ranks against several films given by id or by title.
func (h *Handler) SimilarToSet(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeAppError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeAppError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request: %v", err))
		return
	}
	if len(req.IDs)+len(req.Titles) == 0 {
		h.writeAppError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "ids or titles is required"))
		return
	}

	ids := append([]string(nil), req.IDs...)
	for _, title := range req.Titles {
		film, err := h.svc.FindByTitle(title)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		ids = append(ids, film.ID)
	}
	result, err := h.svc.SimilarToSet(r.Context(), ids, h.svc.Limit(req.K))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	prompt := strings.TrimSpace(r.URL.Query().Get("q"))
	if prompt == "" {
		h.writeAppError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	k, err := h.parseK(r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	result, err := h.svc.Search(r.Context(), prompt, k)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Film(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Film(chi.URLParam(r, "id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// FindFilm resolves ?title= to a catalogue entry.
func (h *Handler) FindFilm(w http.ResponseWriter, r *http.Request) {
	film, err := h.svc.FindByTitle(r.URL.Query().Get("title"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, film)
}

func (h *Handler) TableInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.TableInfo())
}

// RebuildTable runs a full rebuild. The build outlives a disconnected
// client so a finished table is never thrown away.
func (h *Handler) RebuildTable(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	info, err := h.svc.RebuildTable(ctx)
	if err != nil {
		if info.Loaded {
			logger.FromContext(ctx).Error("similarity table built but not persisted", "error", err)
			h.writeJSON(w, http.StatusOK, map[string]any{"table": info, "warning": "table not persisted"})
			return
		}
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"table": info})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses, enabled := h.svc.CacheStats()
	if !enabled {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if _, _, enabled := h.svc.CacheStats(); !enabled {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.svc.InvalidateCache(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// parseK reads ?k=, falling back to the default and capping at the maximum.
func (h *Handler) parseK(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return h.svc.Limit(0), nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 0 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be a non-negative integer")
	}
	if k == 0 {
		return 0, nil
	}
	return h.svc.Limit(k), nil
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
