package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryEmbeddingCache memoizes (model, text) -> vector pairs. Text is
// content-addressed with SHA-256 so arbitrarily long inputs key cheaply.
//
// By default the cache is unbounded and never evicts. A positive capacity
// switches it to an LRU so memory stays bounded; evictions are counted and
// surfaced via Stats.
type MemoryEmbeddingCache struct {
	registry ModelRegistry

	mu       sync.RWMutex
	entries  map[string][]float64
	bounded  *lru.Cache[string, []float64]
	perModel map[string]int
	capacity int
	hits     int64
	misses   int64
	evicted  int64
}

// NewMemoryEmbeddingCache creates a cache validating vector lengths against
// registry. capacity <= 0 means unbounded.
func NewMemoryEmbeddingCache(registry ModelRegistry, capacity int) (*MemoryEmbeddingCache, error) {
	c := &MemoryEmbeddingCache{
		registry: registry,
		perModel: make(map[string]int),
	}

	if capacity > 0 {
		c.capacity = capacity
		bounded, err := lru.NewWithEvict[string, []float64](capacity, c.onEvict)
		if err != nil {
			return nil, fmt.Errorf("failed to create bounded cache: %w", err)
		}
		c.bounded = bounded
	} else {
		c.entries = make(map[string][]float64)
	}

	return c, nil
}

// onEvict runs under the cache mutex: the LRU is only touched while mu is
// held, so the callback fires with mu held too.
func (c *MemoryEmbeddingCache) onEvict(key string, _ []float64) {
	c.evicted++
	c.decrementModel(modelOfKey(key))
}

// Get returns the cached vector for (modelKey, text), if present.
func (c *MemoryEmbeddingCache) Get(modelKey, text string) ([]float64, bool) {
	key := cacheKey(modelKey, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	var vector []float64
	var ok bool
	if c.bounded != nil {
		vector, ok = c.bounded.Get(key)
	} else {
		vector, ok = c.entries[key]
	}

	if ok {
		c.hits++
		// Hand out a copy: callers mutating a result must not corrupt
		// the stored entry.
		return cloneVector(vector), true
	}
	c.misses++
	return nil, false
}

// Put stores a vector, overwriting any existing entry for the same key.
// The vector length must match the registry dimension for modelKey; a
// disagreement means registry/backend skew and is a programming-error-class
// failure, not a recoverable one.
func (c *MemoryEmbeddingCache) Put(modelKey, text string, vector []float64) error {
	descriptor, err := c.registry.Describe(modelKey)
	if err != nil {
		return err
	}
	if len(vector) != descriptor.Dimension {
		return fmt.Errorf("%w: model %s expects %d, got %d",
			ErrDimensionMismatch, modelKey, descriptor.Dimension, len(vector))
	}

	key := cacheKey(modelKey, text)
	stored := cloneVector(vector)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bounded != nil {
		if _, existed := c.bounded.Peek(key); !existed {
			c.perModel[modelKey]++
		}
		c.bounded.Add(key, stored)
		return nil
	}

	if _, existed := c.entries[key]; !existed {
		c.perModel[modelKey]++
	}
	c.entries[key] = stored
	return nil
}

// Stats returns a read-only snapshot of cache counters.
func (c *MemoryEmbeddingCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entryCount := len(c.entries)
	if c.bounded != nil {
		entryCount = c.bounded.Len()
	}

	distinct := 0
	for _, n := range c.perModel {
		if n > 0 {
			distinct++
		}
	}

	return CacheStats{
		EntryCount:         entryCount,
		DistinctModelCount: distinct,
		Hits:               c.hits,
		Misses:             c.misses,
		Capacity:           c.capacity,
		EvictedCount:       c.evicted,
	}
}

// Clear removes all entries. Intended for test isolation or explicit
// invalidation by the caller; never invoked automatically.
func (c *MemoryEmbeddingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bounded != nil {
		// Purge fires the evict callback per entry; Clear is not an
		// eviction, so restore the counter afterwards.
		prev := c.evicted
		c.bounded.Purge()
		c.evicted = prev
	} else {
		c.entries = make(map[string][]float64)
	}
	c.perModel = make(map[string]int)
}

func (c *MemoryEmbeddingCache) decrementModel(modelKey string) {
	if n := c.perModel[modelKey]; n > 1 {
		c.perModel[modelKey] = n - 1
	} else {
		delete(c.perModel, modelKey)
	}
}

// cacheKey builds the composite (model, content-hash) key. The model key
// cannot contain NUL, so the separator is unambiguous.
func cacheKey(modelKey, text string) string {
	hash := sha256.Sum256([]byte(text))
	return modelKey + "\x00" + hex.EncodeToString(hash[:])
}

func cloneVector(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func modelOfKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i]
		}
	}
	return key
}
