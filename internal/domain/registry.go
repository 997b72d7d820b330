package domain

import (
	"fmt"
)

// StaticModelRegistry holds the fixed model table. Built once at startup,
// read-only afterwards, so lookups need no locking.
type StaticModelRegistry struct {
	byKey map[string]ModelDescriptor
	order []ModelDescriptor
}

// NewStaticModelRegistry builds a registry from the given descriptors.
// The table must be non-empty, keys unique, dimensions positive.
func NewStaticModelRegistry(descriptors ...ModelDescriptor) (*StaticModelRegistry, error) {
	if len(descriptors) == 0 {
		return nil, ErrNoModelsRegistered
	}

	r := &StaticModelRegistry{
		byKey: make(map[string]ModelDescriptor, len(descriptors)),
		order: make([]ModelDescriptor, 0, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Key == "" {
			return nil, fmt.Errorf("model key cannot be empty")
		}
		if d.Dimension <= 0 {
			return nil, fmt.Errorf("model %s: dimension must be positive, got %d", d.Key, d.Dimension)
		}
		if d.BackendReference == "" {
			return nil, fmt.Errorf("model %s: backend reference cannot be empty", d.Key)
		}
		if _, exists := r.byKey[d.Key]; exists {
			return nil, fmt.Errorf("model %s already registered", d.Key)
		}

		r.byKey[d.Key] = d
		r.order = append(r.order, d)
	}

	return r, nil
}

// Describe returns the descriptor for modelKey.
func (r *StaticModelRegistry) Describe(modelKey string) (ModelDescriptor, error) {
	d, exists := r.byKey[modelKey]
	if !exists {
		return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelKey)
	}
	return d, nil
}

// List returns all registered models in registration order.
func (r *StaticModelRegistry) List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(r.order))
	copy(out, r.order)
	return out
}
