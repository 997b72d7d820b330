// Package backend resolves backend references to loaded embedding backends.
// A reference is "<factory>:<rest>", e.g. "openai:text-embedding-3-small"
// or "local:384"; the registry dispatches on the factory prefix.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/davidbz/embercache/internal/domain"
)

// Registry maps factory names to backend factories. It implements
// domain.BackendFactory itself so services depend on a single loader.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]domain.BackendFactory
}

// NewRegistry creates an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]domain.BackendFactory),
	}
}

// Register adds a factory under its own name.
func (r *Registry) Register(factory domain.BackendFactory) error {
	if factory == nil {
		return errors.New("factory cannot be nil")
	}

	name := factory.Name()
	if name == "" {
		return errors.New("factory name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("factory %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Load resolves the reference's factory prefix and delegates the load.
func (r *Registry) Load(ctx context.Context, reference string) (domain.Backend, error) {
	scheme, _, found := strings.Cut(reference, ":")
	if !found || scheme == "" {
		return nil, fmt.Errorf("%w: malformed backend reference %q", domain.ErrBackendUnavailable, reference)
	}

	r.mu.RLock()
	factory, exists := r.factories[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: no backend factory for %q", domain.ErrBackendUnavailable, scheme)
	}

	return factory.Load(ctx, reference)
}

// Name returns the registry identifier.
func (r *Registry) Name() string {
	return "registry"
}

// RefModel returns the part of a backend reference after the factory
// prefix, e.g. "text-embedding-3-small" from "openai:text-embedding-3-small".
func RefModel(reference string) string {
	if _, rest, found := strings.Cut(reference, ":"); found {
		return rest
	}
	return reference
}
