package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"genomcore/pkg/domain"
)

const tolerance = 1e-9

func trainingMatrix() domain.GenotypeMatrix {
	return domain.GenotypeMatrix{
		IndividualIDs: []string{"P1", "P2", "P3", "P4"},
		MarkerNames:   []string{"m1", "m2", "m3"},
		Dosages: [][]float64{
			{0, 1, 2},
			{2, 1, 0},
			{1, 1, 1},
			{0, 0, 2},
		},
	}
}

func TestTrainBreedingScenario(t *testing.T) {
	est := NewEstimator()
	artifact, fitted, err := est.Train(context.Background(), TrainRequest{
		ModelName:    "yield-2026",
		TraitName:    "grain_yield",
		Matrix:       trainingMatrix(),
		Phenotypes:   []float64{10, 20, 15, 8},
		Heritability: 0.5,
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(artifact.Effects) != 3 {
		t.Fatalf("expected 3 marker effects, got %d", len(artifact.Effects))
	}
	if artifact.Method != domain.MethodRRBLUP {
		t.Fatalf("unexpected method %q", artifact.Method)
	}
	if artifact.TrainingPopulationSize != 4 || artifact.MarkerCount != 3 {
		t.Fatalf("unexpected dimensions: n=%d m=%d", artifact.TrainingPopulationSize, artifact.MarkerCount)
	}
	if math.IsNaN(artifact.Accuracy) || math.IsInf(artifact.Accuracy, 0) {
		t.Fatalf("accuracy not finite: %v", artifact.Accuracy)
	}
	if artifact.Accuracy < -1 || artifact.Accuracy > 1 {
		t.Fatalf("accuracy outside [-1,1]: %v", artifact.Accuracy)
	}
	if math.Abs(artifact.Mean-13.25) > tolerance {
		t.Fatalf("expected phenotype mean 13.25, got %v", artifact.Mean)
	}
	if artifact.GeneticVariance < 0 || artifact.ErrorVariance < 0 {
		t.Fatalf("variances must be non-negative: %v, %v", artifact.GeneticVariance, artifact.ErrorVariance)
	}
	if len(fitted) != 4 {
		t.Fatalf("expected 4 fitted predictions, got %d", len(fitted))
	}
	for i, effect := range artifact.Effects {
		if effect.Position != i {
			t.Fatalf("effect %d has position %d", i, effect.Position)
		}
	}
	if artifact.Effects[0].MarkerName != "m1" {
		t.Fatalf("marker names not carried: %v", artifact.Effects[0])
	}
}

// Hand-solved single-marker system: M=[[0],[2]], y=[0,2], h2=0.5.
// p=0.5, Z=[-1,1]', lambda=1, (Z'Z+1)a = Z'y_c => 3a = 2 => a = 2/3,
// gebv = 1 + Z*a = [1/3, 5/3], accuracy = 1, var(gebv) = 4/9,
// var(residuals) = 1/9.
func TestTrainMatchesClosedForm(t *testing.T) {
	est := NewEstimator()
	artifact, fitted, err := est.Train(context.Background(), TrainRequest{
		Matrix: domain.GenotypeMatrix{
			IndividualIDs: []string{"A", "B"},
			MarkerNames:   []string{"m1"},
			Dosages:       [][]float64{{0}, {2}},
		},
		Phenotypes:   []float64{0, 2},
		Heritability: 0.5,
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if math.Abs(artifact.Effects[0].Effect-2.0/3.0) > tolerance {
		t.Fatalf("expected effect 2/3, got %v", artifact.Effects[0].Effect)
	}
	if math.Abs(fitted[0].GEBV-1.0/3.0) > tolerance || math.Abs(fitted[1].GEBV-5.0/3.0) > tolerance {
		t.Fatalf("unexpected fitted gebvs: %v, %v", fitted[0].GEBV, fitted[1].GEBV)
	}
	if math.Abs(artifact.Accuracy-1) > tolerance {
		t.Fatalf("expected accuracy 1, got %v", artifact.Accuracy)
	}
	if math.Abs(artifact.GeneticVariance-4.0/9.0) > tolerance {
		t.Fatalf("expected genetic variance 4/9, got %v", artifact.GeneticVariance)
	}
	if math.Abs(artifact.ErrorVariance-1.0/9.0) > tolerance {
		t.Fatalf("expected error variance 1/9, got %v", artifact.ErrorVariance)
	}
}

func TestTrainDeterminism(t *testing.T) {
	est := NewEstimator()
	req := TrainRequest{
		Matrix:       trainingMatrix(),
		Phenotypes:   []float64{10, 20, 15, 8},
		Heritability: 0.5,
	}
	first, _, err := est.Train(context.Background(), req)
	if err != nil {
		t.Fatalf("first train: %v", err)
	}
	second, _, err := est.Train(context.Background(), req)
	if err != nil {
		t.Fatalf("second train: %v", err)
	}
	for i := range first.Effects {
		if first.Effects[i].Effect != second.Effects[i].Effect {
			t.Fatalf("effect %d differs between runs: %v vs %v", i, first.Effects[i].Effect, second.Effects[i].Effect)
		}
	}
	if first.Accuracy != second.Accuracy {
		t.Fatalf("accuracy differs between runs: %v vs %v", first.Accuracy, second.Accuracy)
	}
}

func TestTrainImputesMissingWithColumnMean(t *testing.T) {
	est := NewEstimator()
	withMissing := domain.GenotypeMatrix{
		IndividualIDs: []string{"A", "B", "C"},
		MarkerNames:   []string{"m1", "m2"},
		Dosages: [][]float64{
			{0, domain.MissingDosage},
			{2, 1},
			{1, 1},
		},
	}
	// Column mean of m2 over non-missing entries is 1, so the imputed
	// matrix equals the fully observed one.
	imputed := domain.GenotypeMatrix{
		IndividualIDs: []string{"A", "B", "C"},
		MarkerNames:   []string{"m1", "m2"},
		Dosages: [][]float64{
			{0, 1},
			{2, 1},
			{1, 1},
		},
	}
	phenotypes := []float64{5, 9, 7}
	got, _, err := est.Train(context.Background(), TrainRequest{Matrix: withMissing, Phenotypes: phenotypes, Heritability: 0.5})
	if err != nil {
		t.Fatalf("train with missing: %v", err)
	}
	want, _, err := est.Train(context.Background(), TrainRequest{Matrix: imputed, Phenotypes: phenotypes, Heritability: 0.5})
	if err != nil {
		t.Fatalf("train imputed: %v", err)
	}
	for i := range want.Effects {
		if math.Abs(got.Effects[i].Effect-want.Effects[i].Effect) > tolerance {
			t.Fatalf("effect %d: imputation mismatch %v vs %v", i, got.Effects[i].Effect, want.Effects[i].Effect)
		}
	}
}

func TestTrainRejectsInvalidHeritability(t *testing.T) {
	est := NewEstimator()
	// The deliberately broken matrix proves heritability is rejected before
	// the genotype data is touched.
	broken := domain.GenotypeMatrix{IndividualIDs: []string{"A"}, Dosages: [][]float64{{7, 7}}}
	for _, h := range []float64{0, -0.1, 1.5} {
		_, _, err := est.Train(context.Background(), TrainRequest{Matrix: broken, Phenotypes: []float64{1}, Heritability: h})
		var herr *domain.InvalidHeritabilityError
		if !errors.As(err, &herr) {
			t.Fatalf("heritability %v: expected InvalidHeritabilityError, got %v", h, err)
		}
		if herr.Heritability != h {
			t.Fatalf("error should echo heritability %v, got %v", h, herr.Heritability)
		}
	}
}

func TestTrainHeritabilityOneAllowed(t *testing.T) {
	// h2 = 1 means lambda = 0; with independent marker columns the system
	// stays solvable.
	est := NewEstimator()
	_, _, err := est.Train(context.Background(), TrainRequest{
		Matrix: domain.GenotypeMatrix{
			IndividualIDs: []string{"A", "B", "C"},
			Dosages:       [][]float64{{0, 0}, {2, 0}, {0, 2}},
		},
		Phenotypes:   []float64{1, 2, 3},
		Heritability: 1,
	})
	if err != nil {
		t.Fatalf("train with h2=1: %v", err)
	}
}

func TestTrainSingularSystem(t *testing.T) {
	// lambda = 0 (h2=1) with duplicated marker columns makes Z'Z singular.
	est := NewEstimator()
	_, _, err := est.Train(context.Background(), TrainRequest{
		Matrix: domain.GenotypeMatrix{
			IndividualIDs: []string{"A", "B", "C"},
			Dosages:       [][]float64{{0, 0}, {1, 1}, {2, 2}},
		},
		Phenotypes:   []float64{1, 2, 3},
		Heritability: 1,
	})
	var serr *domain.SingularSystemError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SingularSystemError, got %v", err)
	}
	if serr.Markers != 2 || serr.Lambda != 0 {
		t.Fatalf("error should carry system shape: %+v", serr)
	}
}

func TestTrainPhenotypeLengthMismatch(t *testing.T) {
	est := NewEstimator()
	_, _, err := est.Train(context.Background(), TrainRequest{
		Matrix:       trainingMatrix(),
		Phenotypes:   []float64{1, 2},
		Heritability: 0.5,
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
