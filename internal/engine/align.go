// Package engine implements the genomic prediction core: genotype/phenotype
// alignment, RR-BLUP marker-effect estimation, breeding-value scoring, and
// cross prediction/ranking. All computation is pure and synchronous over
// in-memory matrices; the package never touches storage. CPU-heavy entry
// points (training, ranking) are meant to be dispatched off any
// request-handling loop by the caller.
package engine

import (
	"genomcore/pkg/domain"
)

// Align intersects a genotype matrix with a phenotype map. Rows whose
// individual ID carries a phenotype are kept in their original matrix order,
// and the phenotype vector is emitted in the same order so matrix rows and
// trait values stay parallel.
//
// The matrix is validated at this boundary so the solver downstream can
// assume rectangular, domain-checked dosages. Fails with
// InsufficientOverlapError when fewer than two IDs intersect.
func Align(matrix domain.GenotypeMatrix, phenotypes domain.PhenotypeMap) (domain.GenotypeMatrix, []float64, []string, error) {
	if err := matrix.Validate(); err != nil {
		return domain.GenotypeMatrix{}, nil, nil, err
	}

	keptRows := make([][]float64, 0, matrix.Len())
	keptIDs := make([]string, 0, matrix.Len())
	values := make([]float64, 0, matrix.Len())
	for i, id := range matrix.IndividualIDs {
		value, ok := phenotypes[id]
		if !ok {
			continue
		}
		keptRows = append(keptRows, matrix.Dosages[i])
		keptIDs = append(keptIDs, id)
		values = append(values, value)
	}

	if len(keptIDs) < 2 {
		return domain.GenotypeMatrix{}, nil, nil, &domain.InsufficientOverlapError{Overlap: len(keptIDs)}
	}

	aligned := domain.GenotypeMatrix{
		IndividualIDs: keptIDs,
		MarkerNames:   matrix.MarkerNames,
		Dosages:       keptRows,
	}
	return aligned, values, keptIDs, nil
}
