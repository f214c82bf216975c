package engine

import (
	"context"
	"errors"
	"testing"

	"genomcore/pkg/domain"
)

// fakeStore records calls and supports error injection, so service tests can
// observe persistence behavior without a real backend.
type fakeStore struct {
	saveErr        error
	models         map[string]domain.ModelArtifact
	fitted         map[string][]domain.GEBVPrediction
	predictions    []domain.GEBVPrediction
	predictionsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		models: make(map[string]domain.ModelArtifact),
		fitted: make(map[string][]domain.GEBVPrediction),
	}
}

func (f *fakeStore) SaveModel(_ context.Context, artifact domain.ModelArtifact, predictions []domain.GEBVPrediction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.models[artifact.ID] = artifact
	f.fitted[artifact.ID] = predictions
	return nil
}

func (f *fakeStore) GetModel(_ context.Context, id string) (domain.ModelArtifact, error) {
	artifact, ok := f.models[id]
	if !ok {
		return domain.ModelArtifact{}, domain.ErrModelNotFound
	}
	return artifact, nil
}

func (f *fakeStore) ListModels(context.Context) ([]domain.ModelArtifact, error) {
	out := make([]domain.ModelArtifact, 0, len(f.models))
	for _, m := range f.models {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) DeleteModel(_ context.Context, id string) (bool, error) {
	if _, ok := f.models[id]; !ok {
		return false, nil
	}
	delete(f.models, id)
	delete(f.fitted, id)
	return true, nil
}

func (f *fakeStore) SavePredictions(_ context.Context, predictions []domain.GEBVPrediction) error {
	if f.predictionsErr != nil {
		return f.predictionsErr
	}
	f.predictions = append(f.predictions, predictions...)
	return nil
}

func (f *fakeStore) ListPredictions(_ context.Context, modelID string) ([]domain.GEBVPrediction, error) {
	var out []domain.GEBVPrediction
	for _, p := range f.predictions {
		if p.ModelID == modelID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func TestServiceTrainModelPersists(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	artifact, err := svc.TrainModel(context.Background(), "yield-2026", "grain_yield", trainingMatrix(), domain.PhenotypeMap{
		"P1": 10, "P2": 20, "P3": 15, "P4": 8,
	}, 0.5)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if artifact.ID == "" {
		t.Fatalf("artifact has no id")
	}
	if artifact.CreatedAt.IsZero() {
		t.Fatalf("artifact has no creation time")
	}
	stored, ok := store.models[artifact.ID]
	if !ok {
		t.Fatalf("artifact not persisted")
	}
	if stored.ModelName != "yield-2026" || stored.TraitName != "grain_yield" {
		t.Fatalf("stored artifact fields wrong: %+v", stored)
	}
	for _, effect := range stored.Effects {
		if effect.ModelID != artifact.ID {
			t.Fatalf("effect not stamped with model id: %+v", effect)
		}
	}
	fitted := store.fitted[artifact.ID]
	if len(fitted) != 4 {
		t.Fatalf("expected 4 fitted predictions, got %d", len(fitted))
	}
	for _, p := range fitted {
		if p.ModelID != artifact.ID {
			t.Fatalf("fitted prediction not stamped: %+v", p)
		}
	}
}

func TestServiceTrainModelNothingPersistedOnError(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.TrainModel(context.Background(), "m", "t", trainingMatrix(), domain.PhenotypeMap{"P1": 1}, 0.5)
	var overlapErr *domain.InsufficientOverlapError
	if !errors.As(err, &overlapErr) {
		t.Fatalf("expected InsufficientOverlapError, got %v", err)
	}
	if len(store.models) != 0 || len(store.predictions) != 0 {
		t.Fatalf("store must stay empty after a failed run")
	}
}

func TestServiceTrainModelStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	svc := NewService(store)

	_, err := svc.TrainModel(context.Background(), "m", "t", trainingMatrix(), domain.PhenotypeMap{
		"P1": 10, "P2": 20, "P3": 15, "P4": 8,
	}, 0.5)
	if err == nil || !errors.Is(err, store.saveErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestServicePredictGEBVsPersists(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	artifact, err := svc.TrainModel(context.Background(), "m", "t", trainingMatrix(), domain.PhenotypeMap{
		"P1": 10, "P2": 20, "P3": 15, "P4": 8,
	}, 0.5)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	candidates := domain.GenotypeMatrix{
		IndividualIDs: []string{"N1", "N2"},
		MarkerNames:   []string{"m1", "m2", "m3"},
		Dosages:       [][]float64{{0, 1, 2}, {2, 2, 0}},
	}
	predictions, err := svc.PredictGEBVs(context.Background(), artifact.ID, candidates)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(predictions))
	}
	stored, err := store.ListPredictions(context.Background(), artifact.ID)
	if err != nil {
		t.Fatalf("list predictions: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("predictions not persisted: got %d", len(stored))
	}
}

func TestServicePredictGEBVsUnknownModel(t *testing.T) {
	svc := NewService(newFakeStore())
	_, err := svc.PredictGEBVs(context.Background(), "missing", trainingMatrix())
	if !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestServiceDeleteModel(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	artifact, err := svc.TrainModel(context.Background(), "m", "t", trainingMatrix(), domain.PhenotypeMap{
		"P1": 10, "P2": 20, "P3": 15, "P4": 8,
	}, 0.5)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	deleted, err := svc.DeleteModel(context.Background(), artifact.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: %v deleted=%v", err, deleted)
	}
	deleted, err = svc.DeleteModel(context.Background(), artifact.ID)
	if err != nil || deleted {
		t.Fatalf("second delete must report absence: %v deleted=%v", err, deleted)
	}
}

func TestServiceRecordsMetrics(t *testing.T) {
	store := newFakeStore()
	rec := NewExpvarMetricsRecorder("")
	svc := NewService(store, WithMetricsRecorder(rec))

	if _, err := svc.TrainModel(context.Background(), "m", "t", trainingMatrix(), domain.PhenotypeMap{
		"P1": 10, "P2": 20, "P3": 15, "P4": 8,
	}, 0.5); err != nil {
		t.Fatalf("train: %v", err)
	}
	// Invalid heritability makes the second run fail.
	if _, err := svc.TrainModel(context.Background(), "m", "t", trainingMatrix(), domain.PhenotypeMap{
		"P1": 10, "P2": 20, "P3": 15, "P4": 8,
	}, 0); err == nil {
		t.Fatalf("expected heritability error")
	}

	snap := rec.Snapshot()
	if snap.Results["train_model"]["success"] != 1 {
		t.Fatalf("expected 1 train success, got %+v", snap.Results)
	}
	if snap.Results["train_model"]["error"] != 1 {
		t.Fatalf("expected 1 train error, got %+v", snap.Results)
	}
}
