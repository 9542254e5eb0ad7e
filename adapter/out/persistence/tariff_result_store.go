// Package persistence implements the result store adapters.
package persistence

import (
	"context"
	"sync"

	"tariff_server/core/domain"
	"tariff_server/core/port/out"
)

// MemoryResultStore keeps comparisons in process memory. Distinct
// comparisons never share a key, so a single RWMutex guarding the map and
// the insertion order is all the coordination required.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]*domain.ComparisonResult
	order   []string // ids in insertion order, oldest first
}

// NewMemoryResultStore creates an empty in-memory store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		results: make(map[string]*domain.ComparisonResult),
	}
}

// Create implements out.ResultStore.
func (s *MemoryResultStore) Create(_ context.Context, result *domain.ComparisonResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[result.ID]; !exists {
		s.order = append(s.order, result.ID)
	}
	s.results[result.ID] = result
	return nil
}

// Get implements out.ResultStore.
func (s *MemoryResultStore) Get(_ context.Context, id string) (*domain.ComparisonResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[id]
	if !ok {
		return nil, out.ErrComparisonNotFound
	}
	return result, nil
}

// List implements out.ResultStore, newest first.
func (s *MemoryResultStore) List(_ context.Context, limit, offset int) ([]*domain.ComparisonResult, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.order)
	if offset >= total || limit <= 0 {
		return nil, total, nil
	}

	results := make([]*domain.ComparisonResult, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(results) < limit; i-- {
		results = append(results, s.results[s.order[i]])
	}
	return results, total, nil
}

// Stats implements out.ResultStore.
func (s *MemoryResultStore) Stats(_ context.Context) (*domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.ComparisonResult, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.results[id])
	}
	return domain.ComputeStats(all), nil
}

var _ out.ResultStore = (*MemoryResultStore)(nil)
