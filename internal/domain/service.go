package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/davidbz/embercache/internal/observability"
)

// Service is the retrieval façade coordinating embedding generation,
// candidate fetch, and ranking.
type Service struct {
	registry ModelRegistry
	embedder Embedder
	store    VectorStore
	cache    EmbeddingCache
	selector ModelSelector
	events   EventPublisher
}

// NewService creates a new retrieval service (DI constructor).
func NewService(
	registry ModelRegistry,
	embedder Embedder,
	store VectorStore,
	cache EmbeddingCache,
	selector ModelSelector,
	events EventPublisher,
) *Service {
	return &Service{
		registry: registry,
		embedder: embedder,
		store:    store,
		cache:    cache,
		selector: selector,
		events:   events,
	}
}

// Upsert computes (or reuses the cached) embedding for the input text and
// writes the complete record to the store, replacing any record with the
// same ID. Store failures are propagated; retries are the caller's call.
func (s *Service) Upsert(ctx context.Context, input *RecordInput) error {
	if input == nil {
		return errors.New("record cannot be nil")
	}
	if input.ID == "" {
		return errors.New("record id cannot be empty")
	}
	if input.Text == "" {
		return errors.New("record text cannot be empty")
	}

	logger := observability.FromContext(ctx)

	vector, err := s.embedder.Embed(ctx, input.ModelKey, input.Text)
	if err != nil {
		return fmt.Errorf("failed to embed record text: %w", err)
	}

	record := &EmbeddingRecord{
		ID:        input.ID,
		Locator:   input.Locator,
		Text:      input.Text,
		Vector:    vector,
		Sections:  input.Sections,
		CreatedAt: time.Now().UTC(),
		ModelKey:  input.ModelKey,
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		logger.Error("record upsert failed",
			observability.String("record_id", input.ID),
			observability.Error(err))
		return s.wrapStoreError(ctx, err)
	}

	logger.Info("record upserted",
		observability.String("record_id", input.ID),
		observability.String("model", input.ModelKey),
		observability.Int("dimension", len(vector)))

	if s.events != nil {
		s.events.Publish(ctx, "record.upserted", map[string]interface{}{
			"record_id": input.ID,
			"model_key": input.ModelKey,
		})
	}

	return nil
}

// Search embeds the query, fetches up to candidateLimit records produced
// under modelKey, scores each against the query vector, and returns at most
// topK results ordered by descending similarity. Ties break on ascending
// record ID so ranking is deterministic regardless of store return order.
// An empty candidate set is a valid outcome, not an error.
func (s *Service) Search(
	ctx context.Context,
	query string,
	modelKey string,
	candidateLimit int,
	topK int,
) ([]*SearchResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if candidateLimit <= 0 {
		return nil, errors.New("candidate limit must be positive")
	}
	if topK <= 0 {
		return nil, errors.New("topK must be positive")
	}

	logger := observability.FromContext(ctx)

	queryVector, err := s.embedder.Embed(ctx, modelKey, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := s.store.FetchCandidates(ctx, modelKey, candidateLimit)
	if err != nil {
		logger.Error("candidate fetch failed",
			observability.String("model", modelKey),
			observability.Error(err))
		return nil, s.wrapStoreError(ctx, err)
	}

	type scored struct {
		record *EmbeddingRecord
		score  float64
	}

	ranked := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		score, simErr := CosineSimilarity(queryVector, candidate.Vector)
		if simErr != nil {
			// A stored vector from another model generation slipped
			// through; skip it rather than failing the whole query.
			logger.Warn("skipping candidate with incompatible vector",
				observability.String("record_id", candidate.ID),
				observability.Int("candidate_dimension", len(candidate.Vector)),
				observability.Int("query_dimension", len(queryVector)))
			continue
		}
		ranked = append(ranked, scored{record: candidate, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].record.ID < ranked[j].record.ID
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]*SearchResult, 0, len(ranked))
	for _, entry := range ranked {
		results = append(results, &SearchResult{
			Locator:         entry.record.Locator,
			Text:            entry.record.Text,
			Sections:        entry.record.Sections,
			SimilarityScore: entry.score,
			ModelKey:        modelKey,
		})
	}

	topScore := 0.0
	if len(results) > 0 {
		topScore = results[0].SimilarityScore
	}
	logger.Info("search completed",
		observability.String("model", modelKey),
		observability.Int("candidates", len(candidates)),
		observability.Int("results", len(results)),
		observability.Float64("top_score", topScore))

	if s.events != nil {
		s.events.Publish(ctx, "search.completed", map[string]interface{}{
			"model_key":  modelKey,
			"candidates": len(candidates),
			"results":    len(results),
		})
	}

	return results, nil
}

// AdaptiveSearch selects a model for the query heuristically, then searches
// with it. The chosen model key is returned alongside the results.
func (s *Service) AdaptiveSearch(
	ctx context.Context,
	query string,
	sctx SelectionContext,
	candidateLimit int,
	topK int,
) (string, []*SearchResult, error) {
	modelKey, err := s.selector.SelectModel(query, sctx)
	if err != nil {
		return "", nil, fmt.Errorf("model selection failed: %w", err)
	}

	observability.FromContext(ctx).Info("model selected for query",
		observability.String("model", modelKey),
		observability.Int("previous_queries", len(sctx.PreviousQueries)),
		observability.Strings("preferred_models", sctx.PreferredModels))

	results, err := s.Search(ctx, query, modelKey, candidateLimit, topK)
	if err != nil {
		return "", nil, err
	}

	return modelKey, results, nil
}

// CacheStats returns a snapshot of the embedding cache counters.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// wrapStoreError tags store failures with ErrStoreUnavailable unless the
// operation was cancelled, which is reported as the context error.
func (s *Service) wrapStoreError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
