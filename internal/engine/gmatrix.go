package engine

import (
	"gonum.org/v1/gonum/mat"

	"genomcore/pkg/domain"
)

// GenomicRelationship computes the VanRaden genomic relationship matrix
// G = ZZ' / 2*sum(p*(1-p)) over a diploid genotype matrix, with Z = M - 2p.
// Entry (i,j) is the realized additive relationship between individuals i
// and j and can feed CrossRequest.Relationship. Missing dosages are replaced
// by their column mean, consistent with training. A monomorphic panel
// (zero denominator) yields the zero matrix.
func GenomicRelationship(matrix domain.GenotypeMatrix) (*mat.SymDense, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	n := matrix.Len()
	m := matrix.MarkerCount()
	if n == 0 || m == 0 {
		return nil, domain.NewValidationError("genotype matrix is empty")
	}

	z := mat.NewDense(n, m, nil)
	var denom float64
	for j := 0; j < m; j++ {
		colMean := imputedColumnMean(matrix.Dosages, j)
		var sum float64
		for i := 0; i < n; i++ {
			d := matrix.Dosages[i][j]
			if domain.IsMissingDosage(d) {
				d = colMean
			}
			z.Set(i, j, d)
			sum += d
		}
		p := sum / float64(n) / 2
		denom += 2 * p * (1 - p)
		for i := 0; i < n; i++ {
			z.Set(i, j, z.At(i, j)-2*p)
		}
	}

	g := mat.NewSymDense(n, nil)
	if denom == 0 {
		return g, nil
	}
	g.SymOuterK(1/denom, z)
	return g, nil
}
