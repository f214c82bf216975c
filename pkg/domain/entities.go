// Package domain defines the core value types, error taxonomy, and
// persistence contracts of the genomic prediction engine.
package domain

import (
	"math"
	"time"
)

// MethodRRBLUP is the estimation method recorded on every model artifact
// produced by this engine. Other methods (GBLUP, Bayesian regressions) are
// out of scope.
const MethodRRBLUP = "RR-BLUP"

// MissingDosage is the sentinel for an uncalled genotype. Any NaN dosage is
// treated as missing.
var MissingDosage = math.NaN()

// IsMissingDosage reports whether a dosage value is the missing sentinel.
func IsMissingDosage(d float64) bool { return math.IsNaN(d) }

// GenotypeMatrix holds allele dosages for a set of individuals over an
// ordered marker panel. Rows are individuals, columns are markers. Dosages
// are 0, 1, or 2 copies of the alternate allele, or MissingDosage.
//
// The marker column order is the binding contract between training and
// prediction: a model trained from this matrix can only score matrices whose
// columns follow the same order.
type GenotypeMatrix struct {
	IndividualIDs []string    `json:"individual_ids"`
	MarkerNames   []string    `json:"marker_names"`
	Dosages       [][]float64 `json:"dosages"`
}

// Len returns the number of individuals (rows).
func (m GenotypeMatrix) Len() int { return len(m.Dosages) }

// MarkerCount returns the number of markers (columns).
func (m GenotypeMatrix) MarkerCount() int {
	if len(m.Dosages) == 0 {
		return len(m.MarkerNames)
	}
	return len(m.Dosages[0])
}

// Row returns the dosage vector of individual i. The returned slice aliases
// the matrix storage and must not be mutated.
func (m GenotypeMatrix) Row(i int) []float64 { return m.Dosages[i] }

// Validate checks the structural invariants: one ID per row, rectangular
// dosage storage, marker names parallel to columns when present, and every
// dosage in {0,1,2} or missing.
func (m GenotypeMatrix) Validate() error {
	if len(m.IndividualIDs) != len(m.Dosages) {
		return NewValidationError("individual id count %d does not match row count %d", len(m.IndividualIDs), len(m.Dosages))
	}
	width := m.MarkerCount()
	if len(m.MarkerNames) > 0 && len(m.MarkerNames) != width {
		return NewValidationError("marker name count %d does not match column count %d", len(m.MarkerNames), width)
	}
	for i, row := range m.Dosages {
		if len(row) != width {
			return NewValidationError("row %d has %d markers, expected %d", i, len(row), width)
		}
		for j, d := range row {
			if IsMissingDosage(d) {
				continue
			}
			if d != 0 && d != 1 && d != 2 {
				return NewValidationError("row %d marker %d has dosage %v outside {0,1,2}", i, j, d)
			}
		}
	}
	return nil
}

// PhenotypeMap maps an individual identifier to a single observed trait
// value. Only individuals present in both a genotype matrix and a phenotype
// map participate in training.
type PhenotypeMap map[string]float64

// ModelArtifact is the immutable record of one trained RR-BLUP model:
// hyperparameters, summary statistics, and the ordered marker-effect vector.
// Artifacts are superseded by training a new model, never mutated in place,
// and are therefore safe to share read-only across concurrent predictions.
type ModelArtifact struct {
	ID                     string         `json:"id"`
	ModelName              string         `json:"model_name"`
	TraitName              string         `json:"trait_name"`
	Method                 string         `json:"method"`
	TrainingPopulationSize int            `json:"training_population_size"`
	MarkerCount            int            `json:"marker_count"`
	Heritability           float64        `json:"heritability"`
	GeneticVariance        float64        `json:"genetic_variance"`
	ErrorVariance          float64        `json:"error_variance"`
	Accuracy               float64        `json:"accuracy"`
	Mean                   float64        `json:"mean"`
	Effects                []MarkerEffect `json:"effects"`
	CreatedAt              time.Time      `json:"created_at"`
}

// EffectVector returns the effect values ordered by position.
func (a ModelArtifact) EffectVector() []float64 {
	out := make([]float64, len(a.Effects))
	for i, e := range a.Effects {
		out[i] = e.Effect
	}
	return out
}

// MarkerEffect is the estimated additive contribution of one marker. The
// Position field records the marker's column index in the training matrix;
// callers applying the owning model to new data must supply columns in the
// same order or re-align by MarkerName first.
type MarkerEffect struct {
	ModelID    string  `json:"model_id"`
	MarkerName string  `json:"marker_name"`
	Position   int     `json:"position"`
	Effect     float64 `json:"effect"`
}

// GEBVPrediction is a genomic estimated breeding value for one individual
// under one model. Reliability is 0 when unknown; this engine does not
// compute RR-BLUP reliabilities, so callers must not read meaning into it.
type GEBVPrediction struct {
	ModelID      string  `json:"model_id"`
	IndividualID string  `json:"individual_id"`
	GEBV         float64 `json:"gebv"`
	Reliability  float64 `json:"reliability"`
}

// CrossPrediction is the predicted outcome distribution of a cross between
// two candidate parents. Pure value object: recomputed on demand, never
// persisted with an independent lifecycle.
type CrossPrediction struct {
	Parent1ID             string  `json:"parent1_id"`
	Parent2ID             string  `json:"parent2_id"`
	PredictedMean         float64 `json:"predicted_mean"`
	PredictedVariance     float64 `json:"predicted_variance"`
	Usefulness            float64 `json:"usefulness"`
	SuperiorProgenyProb   float64 `json:"superior_progeny_prob"`
	InbreedingCoefficient float64 `json:"inbreeding_coefficient"`
	GeneticDistance       float64 `json:"genetic_distance"`
}

// RankBy selects the CrossPrediction field a ranking sorts on.
type RankBy string

// Supported ranking criteria.
const (
	RankByUsefulness   RankBy = "usefulness"
	RankByMean         RankBy = "mean"
	RankByVariance     RankBy = "variance"
	RankBySuperiorProb RankBy = "superior_prob"
)

// Valid reports whether the criterion is one of the supported fields.
func (r RankBy) Valid() bool {
	switch r {
	case RankByUsefulness, RankByMean, RankByVariance, RankBySuperiorProb:
		return true
	}
	return false
}
