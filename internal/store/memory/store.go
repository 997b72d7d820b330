// Package memory provides an in-process vector record store. It backs the
// dev profile and tests; nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/davidbz/embercache/internal/domain"
)

// Store holds records in a map, remembering first-insert order so candidate
// iteration is stable across calls.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.EmbeddingRecord
	order   []string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*domain.EmbeddingRecord),
	}
}

// Upsert writes a complete record, replacing any record with the same ID.
func (s *Store) Upsert(_ context.Context, record *domain.EmbeddingRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.ID == "" {
		return errors.New("record id cannot be empty")
	}

	stored := cloneRecord(record)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; !exists {
		s.order = append(s.order, record.ID)
	}
	s.records[record.ID] = stored

	return nil
}

// FetchCandidates returns up to limit records produced under modelKey, in
// first-insert order.
func (s *Store) FetchCandidates(_ context.Context, modelKey string, limit int) ([]*domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.EmbeddingRecord
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		record := s.records[id]
		if record.ModelKey != modelKey {
			continue
		}
		out = append(out, cloneRecord(record))
	}

	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(r *domain.EmbeddingRecord) *domain.EmbeddingRecord {
	clone := *r
	clone.Vector = append([]float64(nil), r.Vector...)
	if r.Sections != nil {
		clone.Sections = append([]string(nil), r.Sections...)
	}
	return &clone
}
