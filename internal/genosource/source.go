// Package genosource loads dense dosage matrices from columnar genotype
// storage. It is a pure data-loading layer: decoding variant and sample
// arrays and deriving per-individual alt-allele dosages. All numerics happen
// downstream in the engine, which never imports this package.
package genosource

import (
	"context"
	"errors"

	"genomcore/pkg/domain"
)

// ErrUnavailable reports that no columnar ingestion capability is configured.
// Callers branch on it with errors.Is instead of discovering the gap at
// load time.
var ErrUnavailable = errors.New("genosource: columnar ingestion unavailable")

// MissingCall is the allele sentinel for an uncalled genotype.
const MissingCall int8 = -1

// Source loads genotype datasets by reference. Implementations: the
// blob-backed columnar store and an in-memory source for tests.
type Source interface {
	LoadDataset(ctx context.Context, ref string) (Dataset, error)
}

// Dataset is a decoded columnar genotype callset: variant-major diploid
// allele calls for every sample. Calls[v][s] holds the two allele calls of
// sample s at variant v; MissingCall marks an uncalled allele.
type Dataset struct {
	Samples     []string
	MarkerNames []string
	Calls       [][][2]int8
}

// DosageMatrix derives the dense individuals-by-markers dosage matrix: each
// cell counts the sample's alternate alleles at that variant (0, 1, or 2).
// Any missing allele call yields the missing dosage sentinel. Storage is
// variant-major, the model wants individual-major, so this transposes.
func (d Dataset) DosageMatrix() (domain.GenotypeMatrix, error) {
	nSamples := len(d.Samples)
	nVariants := len(d.Calls)
	if len(d.MarkerNames) != nVariants {
		return domain.GenotypeMatrix{}, domain.NewValidationError("dataset has %d marker names for %d variants", len(d.MarkerNames), nVariants)
	}

	rows := make([][]float64, nSamples)
	for s := range rows {
		rows[s] = make([]float64, nVariants)
	}
	for v, calls := range d.Calls {
		if len(calls) != nSamples {
			return domain.GenotypeMatrix{}, domain.NewValidationError("variant %d has %d sample calls, expected %d", v, len(calls), nSamples)
		}
		for s, pair := range calls {
			rows[s][v] = dosageOf(pair)
		}
	}

	matrix := domain.GenotypeMatrix{
		IndividualIDs: d.Samples,
		MarkerNames:   d.MarkerNames,
		Dosages:       rows,
	}
	if err := matrix.Validate(); err != nil {
		return domain.GenotypeMatrix{}, err
	}
	return matrix, nil
}

func dosageOf(pair [2]int8) float64 {
	var dosage float64
	for _, allele := range pair {
		if allele < 0 {
			return domain.MissingDosage
		}
		if allele > 0 {
			dosage++
		}
	}
	return dosage
}
