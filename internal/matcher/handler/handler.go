// Package handler exposes the matcher over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/logger"
)

// MatchExecutor runs match requests.
type MatchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (executor.Response, error)
	Explain(corpus, query string, id int) (matcher.Explanation, error)
	DefaultCorpus() string
}

type Handler struct {
	executor MatchExecutor
	registry *registry.Registry
	cache    *cache.CandidateCache
	logger   *slog.Logger
}

// New creates a Handler. queryCache may be nil when caching is disabled.
func New(exec MatchExecutor, reg *registry.Registry, queryCache *cache.CandidateCache) *Handler {
	return &Handler{
		executor: exec,
		registry: reg,
		cache:    queryCache,
		logger:   slog.Default().With("component", "match-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/match", h.Match)
	mux.HandleFunc("GET /api/v1/corpora", h.Corpora)
	mux.HandleFunc("POST /api/v1/corpora/{name}/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type matchResponse struct {
	executor.Response
	Explanation *matcher.Explanation `json:"explanation,omitempty"`
}

// Match answers GET /api/v1/match?q=...&corpus=...&alternating=...&explain=...
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	req := executor.Request{
		Corpus: params.Get("corpus"),
		Query:  params.Get("q"),
	}
	if raw := params.Get("alternating"); raw != "" {
		alt, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "alternating must be a boolean")
			return
		}
		req.Alternating = &alt
	}
	explain, _ := strconv.ParseBool(params.Get("explain"))

	resp, err := h.executor.Execute(ctx, req)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log := logger.FromContext(ctx)
		if status >= http.StatusInternalServerError {
			log.Error("match failed", "corpus", req.Corpus, "error", err)
		} else {
			log.Debug("match rejected", "corpus", req.Corpus, "status", status, "error", err)
		}
		body := map[string]any{"error": err.Error()}
		if apperrors.Is(err, apperrors.ErrNoSuccessor) {
			body["matched_id"] = resp.MatchedID
			body["matched_text"] = resp.MatchedText
		}
		h.writeJSON(w, status, body)
		return
	}

	out := matchResponse{Response: resp}
	if explain {
		exp, err := h.executor.Explain(resp.Corpus, req.Query, resp.MatchedID)
		if err != nil {
			h.logger.Warn("explain failed", "corpus", resp.Corpus, "error", err)
		} else {
			out.Explanation = &exp
		}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Corpora lists the loaded corpora.
func (h *Handler) Corpora(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"default": h.executor.DefaultCorpus(),
		"corpora": h.registry.List(),
	})
}

// Reload rebuilds one corpus from its files and drops its cached candidates.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := h.registry.Reload(name)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	if h.cache != nil {
		if _, err := h.cache.Invalidate(r.Context(), name); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "corpus", name, "error", err)
		}
	}
	logger.FromContext(r.Context()).Info("corpus reloaded", "corpus", name, "documents", stats.Documents)
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	s := h.cache.Stats()
	total := s.Hits + s.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     s.Hits,
		"misses":   s.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  s.Breaker,
	})
}

// CacheInvalidate drops cached candidates, for one corpus when ?corpus= is
// given.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context(), r.URL.Query().Get("corpus"))
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
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
