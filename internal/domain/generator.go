package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/davidbz/embercache/internal/observability"
)

// EmbedderService produces vectors for (model, text) pairs, consulting the
// cache first and the backend as the fallback. Backend instances are loaded
// lazily, once per model, with concurrent loads for the same model coalesced
// into a single in-flight attempt.
type EmbedderService struct {
	registry ModelRegistry
	cache    EmbeddingCache
	factory  BackendFactory

	flight   singleflight.Group
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewEmbedderService creates a new embedder service (DI constructor).
func NewEmbedderService(registry ModelRegistry, cache EmbeddingCache, factory BackendFactory) *EmbedderService {
	return &EmbedderService{
		registry: registry,
		cache:    cache,
		factory:  factory,
		backends: make(map[string]Backend),
	}
}

// EnsureReady initializes the backend for modelKey. Idempotent: repeated
// calls after success are no-ops. Concurrent callers for the same model
// await one shared load; distinct models load independently. A failed load
// is not cached, so the next call retries.
//
// Each caller observes its own context: a waiter whose context ends stops
// waiting with that context's error, while the load itself is detached
// from the caller that happened to start it, so one caller cancelling
// never fails the others sharing the flight.
func (s *EmbedderService) EnsureReady(ctx context.Context, modelKey string) error {
	descriptor, err := s.registry.Describe(modelKey)
	if err != nil {
		return err
	}

	if s.loadedBackend(modelKey) != nil {
		return nil
	}

	ch := s.flight.DoChan(modelKey, func() (interface{}, error) {
		// Re-check under the flight: a previous winner may have
		// finished between the fast path and DoChan.
		if backend := s.loadedBackend(modelKey); backend != nil {
			return backend, nil
		}

		backend, loadErr := s.factory.Load(context.WithoutCancel(ctx), descriptor.BackendReference)
		if loadErr != nil {
			if errors.Is(loadErr, ErrBackendUnavailable) {
				return nil, loadErr
			}
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, loadErr)
		}

		s.mu.Lock()
		s.backends[modelKey] = backend
		s.mu.Unlock()

		return backend, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Embed returns the vector for text under modelKey.
//
// The cache is checked before the backend; on a miss the computed vector is
// validated against the registry dimension and cached. Backend failures are
// propagated, not retried.
func (s *EmbedderService) Embed(ctx context.Context, modelKey, text string) ([]float64, error) {
	descriptor, err := s.registry.Describe(modelKey)
	if err != nil {
		return nil, err
	}

	ctx = observability.WithBackend(ctx, descriptor.BackendReference)

	if vector, ok := s.cache.Get(modelKey, text); ok {
		return vector, nil
	}

	if err := s.EnsureReady(ctx, modelKey); err != nil {
		return nil, err
	}

	backend := s.loadedBackend(modelKey)
	if backend == nil {
		return nil, fmt.Errorf("%w: backend for model %s disappeared after load", ErrBackendUnavailable, modelKey)
	}

	vector, err := backend.Compute(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrBackendUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if len(vector) != descriptor.Dimension {
		// Registry/backend version skew. Fatal for the call and worth
		// flagging loudly: this should never happen in correct operation.
		observability.FromContext(ctx).Error("critical inconsistency: backend dimension disagrees with registry",
			observability.String("model", modelKey),
			observability.Int("expected_dimension", descriptor.Dimension),
			observability.Int("actual_dimension", len(vector)))
		return nil, fmt.Errorf("%w: model %s expects %d, backend returned %d",
			ErrDimensionMismatch, modelKey, descriptor.Dimension, len(vector))
	}

	if err := s.cache.Put(modelKey, text, vector); err != nil {
		return nil, fmt.Errorf("failed to cache embedding: %w", err)
	}

	return vector, nil
}

// EmbedBatch embeds each text, bounding in-flight backend calls to
// concurrencyLimit. The output is positionally aligned with texts. The
// first failure aborts the batch and is surfaced as the batch error;
// vectors already computed stay in the cache.
func (s *EmbedderService) EmbedBatch(
	ctx context.Context,
	modelKey string,
	texts []string,
	concurrencyLimit int,
) ([][]float64, error) {
	if concurrencyLimit <= 0 {
		return nil, errors.New("concurrency limit must be positive")
	}

	if _, err := s.registry.Describe(modelKey); err != nil {
		return nil, err
	}

	results := make([][]float64, len(texts))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrencyLimit)

	for i, text := range texts {
		i, text := i, text
		group.Go(func() error {
			vector, err := s.Embed(groupCtx, modelKey, text)
			if err != nil {
				return err
			}
			results[i] = vector
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *EmbedderService) loadedBackend(modelKey string) Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backends[modelKey]
}
