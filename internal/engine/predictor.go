package engine

import (
	"genomcore/pkg/domain"
)

// Predict applies a trained model's effect vector to a genotype matrix of
// previously unseen individuals: gebv = M * a.
//
// The matrix columns MUST follow the marker order the model was trained
// with; no re-alignment by marker name happens here. Callers with
// differently ordered data must reorder columns first. Scores are not
// re-centered against the new population: they are relative to the training
// population's mean, a documented design choice.
//
// Reliability is not computed under this contract and is always 0.
func Predict(model domain.ModelArtifact, matrix domain.GenotypeMatrix) ([]domain.GEBVPrediction, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	effects := model.EffectVector()
	if len(effects) != matrix.MarkerCount() {
		return nil, &domain.ColumnOrderMismatchError{
			ModelMarkers: len(effects),
			InputMarkers: matrix.MarkerCount(),
		}
	}

	predictions := make([]domain.GEBVPrediction, matrix.Len())
	for i, id := range matrix.IndividualIDs {
		row := matrix.Row(i)
		var gebv float64
		for j, effect := range effects {
			gebv += row[j] * effect
		}
		predictions[i] = domain.GEBVPrediction{
			ModelID:      model.ID,
			IndividualID: id,
			GEBV:         gebv,
			Reliability:  0,
		}
	}
	return predictions, nil
}
