package domain

import "context"

// Backend computes embeddings for a single loaded model.
type Backend interface {
	// Compute returns the embedding vector for text.
	Compute(ctx context.Context, text string) ([]float64, error)
}

// BackendFactory loads backend instances on demand.
type BackendFactory interface {
	// Load initializes the backend named by reference. May be slow
	// (model download, connection setup); callers serialize per model.
	Load(ctx context.Context, reference string) (Backend, error)

	// Name returns the factory identifier.
	Name() string
}

// VectorStore durably holds embedding records.
type VectorStore interface {
	// Upsert writes a complete record, replacing any record with the
	// same ID.
	Upsert(ctx context.Context, record *EmbeddingRecord) error

	// FetchCandidates returns up to limit records produced under
	// modelKey. No ordering is guaranteed by the contract.
	FetchCandidates(ctx context.Context, modelKey string, limit int) ([]*EmbeddingRecord, error)
}

// ModelRegistry exposes the fixed set of supported models.
type ModelRegistry interface {
	// Describe returns the descriptor for modelKey.
	Describe(modelKey string) (ModelDescriptor, error)

	// List returns all registered models in registration order.
	List() []ModelDescriptor
}

// EmbeddingCache memoizes (model, text) -> vector for the process lifetime.
type EmbeddingCache interface {
	// Get returns the cached vector for (modelKey, text), if present.
	Get(modelKey, text string) ([]float64, bool)

	// Put stores a vector, overwriting any existing entry for the key.
	Put(modelKey, text string, vector []float64) error

	// Stats returns a read-only snapshot of cache counters.
	Stats() CacheStats

	// Clear removes all entries.
	Clear()
}

// Embedder produces vectors for (model, text) pairs.
type Embedder interface {
	// Embed returns the vector for text under modelKey, consulting the
	// cache before the backend.
	Embed(ctx context.Context, modelKey, text string) ([]float64, error)

	// EmbedBatch embeds each text, bounding in-flight backend calls to
	// concurrencyLimit. Output order matches input order.
	EmbedBatch(ctx context.Context, modelKey string, texts []string, concurrencyLimit int) ([][]float64, error)
}

// ModelSelector chooses a model key for a query.
type ModelSelector interface {
	// SelectModel picks a registered model for query given optional
	// context. Deterministic: same inputs, same choice.
	SelectModel(query string, sctx SelectionContext) (string, error)
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
