// Package memory implements an in-memory domain.ModelStore for tests and
// ephemeral tooling.
package memory

import (
	"context"
	"sort"
	"sync"

	"genomcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.ModelStore = (*Store)(nil)

// Store keeps model artifacts and predictions in process memory. Values are
// cloned on the way in and out so callers can never mutate stored state.
type Store struct {
	mu          sync.RWMutex
	models      map[string]domain.ModelArtifact
	predictions map[string][]domain.GEBVPrediction
}

// New returns an empty in-memory model store.
func New() *Store {
	return &Store{
		models:      make(map[string]domain.ModelArtifact),
		predictions: make(map[string][]domain.GEBVPrediction),
	}
}

// SaveModel stores the artifact and its fitted predictions.
func (s *Store) SaveModel(_ context.Context, artifact domain.ModelArtifact, predictions []domain.GEBVPrediction) error {
	if artifact.ID == "" {
		return domain.NewValidationError("model artifact has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[artifact.ID] = cloneArtifact(artifact)
	s.predictions[artifact.ID] = append(s.predictions[artifact.ID], clonePredictions(predictions)...)
	return nil
}

// GetModel returns the artifact with effects in position order.
func (s *Store) GetModel(_ context.Context, id string) (domain.ModelArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifact, ok := s.models[id]
	if !ok {
		return domain.ModelArtifact{}, domain.ErrModelNotFound
	}
	return cloneArtifact(artifact), nil
}

// ListModels returns stored artifacts without effect vectors, creation time
// ascending.
func (s *Store) ListModels(_ context.Context) ([]domain.ModelArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ModelArtifact, 0, len(s.models))
	for _, artifact := range s.models {
		a := artifact
		a.Effects = nil
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteModel removes the artifact, its effects, and its predictions.
func (s *Store) DeleteModel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[id]; !ok {
		return false, nil
	}
	delete(s.models, id)
	delete(s.predictions, id)
	return true, nil
}

// SavePredictions appends predictions for their models.
func (s *Store) SavePredictions(_ context.Context, predictions []domain.GEBVPrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range predictions {
		if _, ok := s.models[p.ModelID]; !ok {
			return domain.ErrModelNotFound
		}
		s.predictions[p.ModelID] = append(s.predictions[p.ModelID], p)
	}
	return nil
}

// ListPredictions returns a model's predictions, individual ID ascending.
func (s *Store) ListPredictions(_ context.Context, modelID string) ([]domain.GEBVPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := clonePredictions(s.predictions[modelID])
	sort.Slice(out, func(i, j int) bool { return out[i].IndividualID < out[j].IndividualID })
	return out, nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func cloneArtifact(a domain.ModelArtifact) domain.ModelArtifact {
	cpy := a
	cpy.Effects = make([]domain.MarkerEffect, len(a.Effects))
	copy(cpy.Effects, a.Effects)
	return cpy
}

func clonePredictions(ps []domain.GEBVPrediction) []domain.GEBVPrediction {
	out := make([]domain.GEBVPrediction, len(ps))
	copy(out, ps)
	return out
}
