package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidbz/embercache/internal/domain"
	"github.com/davidbz/embercache/internal/observability"
)

const (
	defaultCandidateLimit   = 100
	defaultTopK             = 10
	defaultBatchConcurrency = 4
)

// Handler handles HTTP requests.
type Handler struct {
	service  *domain.Service
	embedder domain.Embedder
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(service *domain.Service, embedder domain.Embedder) *Handler {
	return &Handler{
		service:  service,
		embedder: embedder,
	}
}

type embedRequest struct {
	ModelKey string `json:"model_key"`
	Text     string `json:"text"`
}

type embedResponse struct {
	ModelKey  string    `json:"model_key"`
	Dimension int       `json:"dimension"`
	Vector    []float64 `json:"vector"`
}

// HandleEmbed computes a single embedding.
func (h *Handler) HandleEmbed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	ctx = observability.WithModel(ctx, req.ModelKey)

	vector, err := h.embedder.Embed(ctx, req.ModelKey, req.Text)
	if err != nil {
		h.writeError(ctx, w, "embed failed", err)
		return
	}

	h.writeJSON(ctx, w, embedResponse{
		ModelKey:  req.ModelKey,
		Dimension: len(vector),
		Vector:    vector,
	})
}

type embedBatchRequest struct {
	ModelKey         string   `json:"model_key"`
	Texts            []string `json:"texts"`
	ConcurrencyLimit int      `json:"concurrency_limit,omitempty"`
}

type embedBatchResponse struct {
	ModelKey string      `json:"model_key"`
	Vectors  [][]float64 `json:"vectors"`
}

// HandleEmbedBatch computes embeddings for a batch of texts.
func (h *Handler) HandleEmbedBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req embedBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.ConcurrencyLimit <= 0 {
		req.ConcurrencyLimit = defaultBatchConcurrency
	}

	ctx = observability.WithModel(ctx, req.ModelKey)

	vectors, err := h.embedder.EmbedBatch(ctx, req.ModelKey, req.Texts, req.ConcurrencyLimit)
	if err != nil {
		h.writeError(ctx, w, "batch embed failed", err)
		return
	}

	h.writeJSON(ctx, w, embedBatchResponse{
		ModelKey: req.ModelKey,
		Vectors:  vectors,
	})
}

// HandleUpsert embeds and durably stores a record.
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input domain.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	ctx = observability.WithModel(ctx, input.ModelKey)

	if err := h.service.Upsert(ctx, &input); err != nil {
		h.writeError(ctx, w, "upsert failed", err)
		return
	}

	h.writeJSON(ctx, w, map[string]string{"status": "ok", "id": input.ID})
}

type searchRequest struct {
	Query          string `json:"query"`
	ModelKey       string `json:"model_key"`
	CandidateLimit int    `json:"candidate_limit,omitempty"`
	TopK           int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	ModelKey string                 `json:"model_key"`
	Results  []*domain.SearchResult `json:"results"`
}

// HandleSearch runs a similarity search under an explicit model.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	applySearchDefaults(&req.CandidateLimit, &req.TopK)
	ctx = observability.WithModel(ctx, req.ModelKey)

	results, err := h.service.Search(ctx, req.Query, req.ModelKey, req.CandidateLimit, req.TopK)
	if err != nil {
		h.writeError(ctx, w, "search failed", err)
		return
	}

	h.writeJSON(ctx, w, searchResponse{ModelKey: req.ModelKey, Results: results})
}

type adaptiveSearchRequest struct {
	Query          string                  `json:"query"`
	Context        domain.SelectionContext `json:"context"`
	CandidateLimit int                     `json:"candidate_limit,omitempty"`
	TopK           int                     `json:"top_k,omitempty"`
}

// HandleAdaptiveSearch selects a model for the query, then searches.
func (h *Handler) HandleAdaptiveSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req adaptiveSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	applySearchDefaults(&req.CandidateLimit, &req.TopK)

	modelKey, results, err := h.service.AdaptiveSearch(ctx, req.Query, req.Context, req.CandidateLimit, req.TopK)
	if err != nil {
		h.writeError(ctx, w, "adaptive search failed", err)
		return
	}

	h.writeJSON(ctx, w, searchResponse{ModelKey: modelKey, Results: results})
}

// HandleCacheStats returns embedding cache counters.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.service.CacheStats()
	observability.FromContext(r.Context()).Debug("cache stats served",
		observability.Int64("hits", stats.Hits),
		observability.Int64("misses", stats.Misses),
		observability.Bool("bounded", stats.Capacity > 0))

	h.writeJSON(r.Context(), w, stats)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

func applySearchDefaults(candidateLimit, topK *int) {
	if *candidateLimit <= 0 {
		*candidateLimit = defaultCandidateLimit
	}
	if *topK <= 0 {
		*topK = defaultTopK
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.FromContext(ctx).Error("failed to encode response",
			observability.Error(err))
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	observability.FromContext(ctx).Error(msg, observability.Error(err))
	http.Error(w, err.Error(), statusForError(err))
}

// statusForError maps the domain error taxonomy onto HTTP status codes so
// callers can distinguish retryable failures from their own mistakes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownModel):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBackendUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
