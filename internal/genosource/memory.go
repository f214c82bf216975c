package genosource

import (
	"context"
	"fmt"
	"sync"
)

// MemorySource holds datasets in process memory. Intended for tests.
type MemorySource struct {
	mu       sync.RWMutex
	datasets map[string]Dataset
}

// NewMemorySource returns an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{datasets: make(map[string]Dataset)}
}

// AddDataset registers a dataset under ref, replacing any previous one.
func (s *MemorySource) AddDataset(ref string, ds Dataset) {
	s.mu.Lock()
	s.datasets[ref] = ds
	s.mu.Unlock()
}

// LoadDataset returns the dataset registered under ref.
func (s *MemorySource) LoadDataset(_ context.Context, ref string) (Dataset, error) {
	s.mu.RLock()
	ds, ok := s.datasets[ref]
	s.mu.RUnlock()
	if !ok {
		return Dataset{}, fmt.Errorf("dataset %s not found", ref)
	}
	return ds, nil
}
