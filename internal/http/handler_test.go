package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/embercache/internal/backend"
	"github.com/davidbz/embercache/internal/backend/local"
	"github.com/davidbz/embercache/internal/domain"
	internalhttp "github.com/davidbz/embercache/internal/http"
	"github.com/davidbz/embercache/internal/routing"
	memorystore "github.com/davidbz/embercache/internal/store/memory"
)

// newTestHandler wires a full in-process stack: local deterministic
// backends, an in-memory store, and the real embedder and service.
func newTestHandler(t *testing.T) *internalhttp.Handler {
	t.Helper()

	registry, err := domain.NewStaticModelRegistry(
		domain.ModelDescriptor{Key: "fast", BackendReference: "local:8", Dimension: 8, Cost: domain.CostFast},
		domain.ModelDescriptor{Key: "quality", BackendReference: "local:16", Dimension: 16, Cost: domain.CostSlow},
		domain.ModelDescriptor{Key: "broken", BackendReference: "local:none", Dimension: 4, Cost: domain.CostMedium},
	)
	require.NoError(t, err)

	factories := backend.NewRegistry()
	require.NoError(t, factories.Register(local.NewFactory()))

	cache, err := domain.NewMemoryEmbeddingCache(registry, 0)
	require.NoError(t, err)

	embedder := domain.NewEmbedderService(registry, cache, factories)
	selector := routing.NewAdaptiveSelector(registry, 0)
	service := domain.NewService(registry, embedder, memorystore.NewStore(), cache, selector, nil)

	return internalhttp.NewHandler(service, embedder)
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handlerFunc(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestHandleEmbed(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler.HandleEmbed, "/v1/embed", map[string]string{
		"model_key": "fast",
		"text":      "hello world",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ModelKey  string    `json:"model_key"`
		Dimension int       `json:"dimension"`
		Vector    []float64 `json:"vector"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, "fast", resp.ModelKey)
	require.Equal(t, 8, resp.Dimension)
	require.Len(t, resp.Vector, 8)
}

func TestHandleEmbed_UnknownModel(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler.HandleEmbed, "/v1/embed", map[string]string{
		"model_key": "nonexistent",
		"text":      "hello",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEmbed_BackendUnavailable(t *testing.T) {
	handler := newTestHandler(t)

	// "broken" points at a reference the local factory cannot load.
	rec := postJSON(t, handler.HandleEmbed, "/v1/embed", map[string]string{
		"model_key": "broken",
		"text":      "hello",
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleEmbed_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/embed", nil)
	rec := httptest.NewRecorder()
	handler.HandleEmbed(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleEmbed_InvalidBody(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/embed", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.HandleEmbed(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEmbedBatch(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler.HandleEmbedBatch, "/v1/embed/batch", map[string]any{
		"model_key": "fast",
		"texts":     []string{"one", "two", "three"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ModelKey string      `json:"model_key"`
		Vectors  [][]float64 `json:"vectors"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Vectors, 3)
	for _, vector := range resp.Vectors {
		require.Len(t, vector, 8)
	}
}

func TestUpsertThenSearch(t *testing.T) {
	handler := newTestHandler(t)

	for _, id := range []string{"alpha", "beta"} {
		rec := postJSON(t, handler.HandleUpsert, "/v1/records", map[string]any{
			"id":        id,
			"locator":   "docs/" + id + ".md",
			"text":      "content of " + id,
			"sections":  []string{"body"},
			"model_key": "fast",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// The local backend is deterministic, so searching for one record's
	// exact text must rank that record first with similarity 1.
	rec := postJSON(t, handler.HandleSearch, "/v1/search", map[string]any{
		"query":     "content of alpha",
		"model_key": "fast",
		"top_k":     2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ModelKey string                 `json:"model_key"`
		Results  []*domain.SearchResult `json:"results"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, "fast", resp.ModelKey)
	require.Len(t, resp.Results, 2)
	require.Equal(t, "docs/alpha.md", resp.Results[0].Locator)
	require.InDelta(t, 1.0, resp.Results[0].SimilarityScore, 1e-9)
	require.Greater(t, resp.Results[0].SimilarityScore, resp.Results[1].SimilarityScore)
}

func TestHandleAdaptiveSearch(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler.HandleUpsert, "/v1/records", map[string]any{
		"id": "a", "text": "short note", "model_key": "fast",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler.HandleAdaptiveSearch, "/v1/search/adaptive", map[string]any{
		"query": "short note",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ModelKey string                 `json:"model_key"`
		Results  []*domain.SearchResult `json:"results"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, "fast", resp.ModelKey)
	require.Len(t, resp.Results, 1)
}

func TestHandleAdaptiveSearch_QuestionEscalates(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler.HandleAdaptiveSearch, "/v1/search/adaptive", map[string]any{
		"query": "what is this?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ModelKey string `json:"model_key"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, "quality", resp.ModelKey)
}

func TestHandleCacheStats(t *testing.T) {
	handler := newTestHandler(t)

	postJSON(t, handler.HandleEmbed, "/v1/embed", map[string]string{
		"model_key": "fast", "text": "warm the cache",
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.HandleCacheStats(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.CacheStats
	decodeBody(t, rec, &stats)
	require.Equal(t, 1, stats.EntryCount)
	require.Equal(t, int64(1), stats.Misses)
}

func TestHandleHealth(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
