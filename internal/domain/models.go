package domain

import "time"

// CostClass ranks a model's latency/memory footprint. It is declarative:
// the selector uses it to trade speed for representation quality, nothing
// enforces it at runtime.
type CostClass int

const (
	CostFast CostClass = iota
	CostMedium
	CostSlow
)

// String returns the human-readable cost class name.
func (c CostClass) String() string {
	switch c {
	case CostFast:
		return "fast"
	case CostMedium:
		return "medium"
	case CostSlow:
		return "slow"
	default:
		return "unknown"
	}
}

// ModelDescriptor describes a registered embedding model. Descriptors are
// built once at startup and never mutated.
type ModelDescriptor struct {
	// Key uniquely identifies the model within the registry.
	Key string
	// BackendReference is the opaque identifier handed to the backend
	// factory, e.g. "openai:text-embedding-3-small" or "local:minilm".
	BackendReference string
	// Dimension is the exact length of every vector this model produces.
	Dimension int
	// Cost ranks the model for adaptive selection.
	Cost CostClass
}

// RecordInput is the caller-supplied shape for an upsert. The vector is
// computed by the service from Text under ModelKey.
type RecordInput struct {
	ID       string   `json:"id"`
	Locator  string   `json:"locator"`
	Text     string   `json:"text"`
	Sections []string `json:"sections,omitempty"`
	ModelKey string   `json:"model_key"`
}

// EmbeddingRecord is the durable record shape owned by the vector store.
// Upserting an existing ID replaces every field.
type EmbeddingRecord struct {
	ID        string    `json:"id"`
	Locator   string    `json:"locator"`
	Text      string    `json:"text"`
	Vector    []float64 `json:"vector"`
	Sections  []string  `json:"sections,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ModelKey  string    `json:"model_key"`
}

// SearchResult is a scored record returned to callers. Never persisted.
type SearchResult struct {
	Locator         string   `json:"locator"`
	Text            string   `json:"text"`
	Sections        []string `json:"sections,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
	ModelKey        string   `json:"model_key"`
}

// SelectionContext carries optional signals for adaptive model selection.
type SelectionContext struct {
	PreviousQueries []string `json:"previous_queries,omitempty"`
	PreferredModels []string `json:"preferred_models,omitempty"`
}

// CacheStats is a read-only snapshot of the embedding cache.
type CacheStats struct {
	EntryCount         int   `json:"entry_count"`
	DistinctModelCount int   `json:"distinct_model_count"`
	Hits               int64 `json:"hits"`
	Misses             int64 `json:"misses"`
	// Capacity is 0 for the unbounded cache.
	Capacity     int   `json:"capacity"`
	EvictedCount int64 `json:"evicted_count"`
}
