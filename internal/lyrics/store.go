package lyrics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNotFound is returned when a dataset has no stored frequency table.
var ErrNotFound = errors.New("dataset not found")

// Store holds the frequency tables tasks share. Load tasks write to it and
// analysis tasks read from it, so implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, dataset string, freq Frequency) error
	Get(ctx context.Context, dataset string) (Frequency, error)
	Datasets(ctx context.Context) ([]string, error)
}

// MemoryStore is a Store guarded by a read/write lock.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]Frequency
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]Frequency)}
}

// Put replaces the table for dataset with a copy of freq.
func (s *MemoryStore) Put(_ context.Context, dataset string, freq Frequency) error {
	cp := freq.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[dataset] = cp
	return nil
}

// Get returns a copy of the table for dataset.
func (s *MemoryStore) Get(_ context.Context, dataset string) (Frequency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	freq, ok := s.tables[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, dataset)
	}
	return freq.Clone(), nil
}

// Datasets returns the stored dataset names, sorted.
func (s *MemoryStore) Datasets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
