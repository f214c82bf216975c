package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"genomcore/pkg/domain"
)

// Service exposes the higher-level train/predict/rank operations, pairing
// the pure engine with a model store and a metrics recorder. The engine
// itself holds no state: every call is a pure function of its arguments plus
// the store contents.
type Service struct {
	estimator Estimator
	store     domain.ModelStore
	metrics   MetricsRecorder
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithMetricsRecorder wires an operation outcome recorder.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// NewService constructs a service backed by the supplied model store.
func NewService(store domain.ModelStore, opts ...ServiceOption) *Service {
	s := &Service{
		estimator: NewEstimator(),
		store:     store,
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrainModel aligns the genotype matrix with the phenotype map, trains an
// RR-BLUP model, and persists the artifact, its marker effects, and the
// fitted training-set predictions atomically. On any error nothing is
// persisted.
func (s *Service) TrainModel(ctx context.Context, modelName, traitName string, matrix domain.GenotypeMatrix, phenotypes domain.PhenotypeMap, heritability float64) (domain.ModelArtifact, error) {
	started := time.Now()
	artifact, err := s.trainModel(ctx, modelName, traitName, matrix, phenotypes, heritability)
	s.metrics.Observe(ctx, "train_model", err == nil, time.Since(started))
	return artifact, err
}

func (s *Service) trainModel(ctx context.Context, modelName, traitName string, matrix domain.GenotypeMatrix, phenotypes domain.PhenotypeMap, heritability float64) (domain.ModelArtifact, error) {
	aligned, values, _, err := Align(matrix, phenotypes)
	if err != nil {
		return domain.ModelArtifact{}, err
	}

	artifact, fitted, err := s.estimator.Train(ctx, TrainRequest{
		ModelName:    modelName,
		TraitName:    traitName,
		Matrix:       aligned,
		Phenotypes:   values,
		Heritability: heritability,
	})
	if err != nil {
		return domain.ModelArtifact{}, err
	}

	artifact.ID = uuid.NewString()
	artifact.CreatedAt = time.Now().UTC()
	for i := range artifact.Effects {
		artifact.Effects[i].ModelID = artifact.ID
	}
	for i := range fitted {
		fitted[i].ModelID = artifact.ID
	}

	if err := s.store.SaveModel(ctx, artifact, fitted); err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("persist model: %w", err)
	}
	return artifact, nil
}

// PredictGEBVs scores previously unseen individuals with a stored model and
// persists the resulting predictions. The matrix columns must follow the
// model's training marker order.
func (s *Service) PredictGEBVs(ctx context.Context, modelID string, matrix domain.GenotypeMatrix) ([]domain.GEBVPrediction, error) {
	started := time.Now()
	predictions, err := s.predictGEBVs(ctx, modelID, matrix)
	s.metrics.Observe(ctx, "predict_gebvs", err == nil, time.Since(started))
	return predictions, err
}

func (s *Service) predictGEBVs(ctx context.Context, modelID string, matrix domain.GenotypeMatrix) ([]domain.GEBVPrediction, error) {
	model, err := s.store.GetModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelID, err)
	}
	predictions, err := Predict(model, matrix)
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePredictions(ctx, predictions); err != nil {
		return nil, fmt.Errorf("persist predictions: %w", err)
	}
	return predictions, nil
}

// RankCrosses runs the pairwise cross ranking with metrics timing. Purely
// computational; nothing is persisted.
func (s *Service) RankCrosses(ctx context.Context, req RankRequest) ([]domain.CrossPrediction, error) {
	started := time.Now()
	ranked, err := RankCrosses(ctx, req)
	s.metrics.Observe(ctx, "rank_crosses", err == nil, time.Since(started))
	return ranked, err
}

// GetModel loads a stored artifact with its effect vector.
func (s *Service) GetModel(ctx context.Context, id string) (domain.ModelArtifact, error) {
	return s.store.GetModel(ctx, id)
}

// DeleteModel removes an artifact together with its effects and predictions.
func (s *Service) DeleteModel(ctx context.Context, id string) (bool, error) {
	return s.store.DeleteModel(ctx, id)
}
