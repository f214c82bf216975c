package engine

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"genomcore/pkg/domain"
)

// TrainRequest carries an aligned training set into the estimator. The
// matrix rows must already be parallel to Phenotypes (use Align).
type TrainRequest struct {
	ModelName    string
	TraitName    string
	Matrix       domain.GenotypeMatrix
	Phenotypes   []float64
	Heritability float64
}

// Estimator solves the RR-BLUP mixed-model equations. Stateless; a zero
// value is ready to use and safe for concurrent calls.
type Estimator struct{}

// NewEstimator returns an RR-BLUP estimator.
func NewEstimator() Estimator { return Estimator{} }

// Train estimates one additive effect per marker plus the population mean.
//
// Pipeline, in order:
//  1. missing dosages replaced by their marker's column mean over non-missing
//     entries (known limitation: naive mean imputation, kept deliberately);
//  2. allele-frequency centering Z = M - 2p with p = mean(dosage)/2;
//  3. ridge parameter lambda = m(1-h2)/h2;
//  4. phenotypes centered on their mean mu;
//  5. dense symmetric solve of (Z'Z + lambda*I) a = Z'y_c;
//  6. fitted gebv = mu + Z*a, accuracy = Pearson cor(y, gebv);
//  7. genetic_variance = var(gebv), error_variance = var(y - gebv)
//     (population variance, divisor n).
//
// Heritability is validated before the matrix is touched. A system that
// cannot be factorized fails with SingularSystemError; nothing is returned
// for the caller to persist in that case. The returned artifact and fitted
// predictions carry no ID; the caller assigns identity before persistence.
func (Estimator) Train(ctx context.Context, req TrainRequest) (domain.ModelArtifact, []domain.GEBVPrediction, error) {
	if req.Heritability <= 0 || req.Heritability > 1 {
		return domain.ModelArtifact{}, nil, &domain.InvalidHeritabilityError{Heritability: req.Heritability}
	}
	if err := ctx.Err(); err != nil {
		return domain.ModelArtifact{}, nil, err
	}

	n := req.Matrix.Len()
	m := req.Matrix.MarkerCount()
	if len(req.Phenotypes) != n {
		return domain.ModelArtifact{}, nil, domain.NewValidationError("phenotype vector length %d does not match %d individuals", len(req.Phenotypes), n)
	}
	if n < 2 {
		return domain.ModelArtifact{}, nil, &domain.InsufficientOverlapError{Overlap: n}
	}
	if m == 0 {
		return domain.ModelArtifact{}, nil, domain.NewValidationError("genotype matrix has no markers")
	}

	// Impute then center in one pass per column.
	z := mat.NewDense(n, m, nil)
	for j := 0; j < m; j++ {
		colMean := imputedColumnMean(req.Matrix.Dosages, j)
		var sum float64
		for i := 0; i < n; i++ {
			d := req.Matrix.Dosages[i][j]
			if domain.IsMissingDosage(d) {
				d = colMean
			}
			z.Set(i, j, d)
			sum += d
		}
		p := sum / float64(n) / 2
		for i := 0; i < n; i++ {
			z.Set(i, j, z.At(i, j)-2*p)
		}
	}

	lambda := float64(m) * (1 - req.Heritability) / req.Heritability

	mu := stat.Mean(req.Phenotypes, nil)
	yc := mat.NewVecDense(n, nil)
	for i, y := range req.Phenotypes {
		yc.SetVec(i, y-mu)
	}

	// LHS = Z'Z + lambda*I, RHS = Z'y_c.
	var lhs mat.SymDense
	lhs.SymOuterK(1, z.T())
	for j := 0; j < m; j++ {
		lhs.SetSym(j, j, lhs.At(j, j)+lambda)
	}
	var rhs mat.VecDense
	rhs.MulVec(z.T(), yc)

	effects, err := solveSymmetric(&lhs, &rhs)
	if err != nil {
		return domain.ModelArtifact{}, nil, &domain.SingularSystemError{Markers: m, Lambda: lambda}
	}

	// Fitted breeding values on the training set.
	var fitted mat.VecDense
	fitted.MulVec(z, effects)
	gebv := make([]float64, n)
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		gebv[i] = mu + fitted.AtVec(i)
		residuals[i] = req.Phenotypes[i] - gebv[i]
	}

	accuracy := stat.Correlation(req.Phenotypes, gebv, nil)

	markerEffects := make([]domain.MarkerEffect, m)
	for j := 0; j < m; j++ {
		name := fmt.Sprintf("M%d", j)
		if j < len(req.Matrix.MarkerNames) {
			name = req.Matrix.MarkerNames[j]
		}
		markerEffects[j] = domain.MarkerEffect{
			MarkerName: name,
			Position:   j,
			Effect:     effects.AtVec(j),
		}
	}

	artifact := domain.ModelArtifact{
		ModelName:              req.ModelName,
		TraitName:              req.TraitName,
		Method:                 domain.MethodRRBLUP,
		TrainingPopulationSize: n,
		MarkerCount:            m,
		Heritability:           req.Heritability,
		GeneticVariance:        popVariance(gebv),
		ErrorVariance:          popVariance(residuals),
		Accuracy:               accuracy,
		Mean:                   mu,
		Effects:                markerEffects,
	}

	fittedPreds := make([]domain.GEBVPrediction, n)
	for i, id := range req.Matrix.IndividualIDs {
		fittedPreds[i] = domain.GEBVPrediction{IndividualID: id, GEBV: gebv[i], Reliability: 0}
	}
	return artifact, fittedPreds, nil
}

// solveSymmetric solves lhs*x = rhs for a symmetric positive-(semi)definite
// system. Cholesky first; LU picks up semi-definite systems Cholesky
// rejects. An error from both means the system is singular.
func solveSymmetric(lhs *mat.SymDense, rhs *mat.VecDense) (*mat.VecDense, error) {
	var x mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(lhs) {
		if err := chol.SolveVecTo(&x, rhs); err == nil {
			return &x, nil
		}
	}
	var lu mat.LU
	lu.Factorize(lhs)
	if err := lu.SolveVecTo(&x, false, rhs); err != nil {
		return nil, err
	}
	return &x, nil
}

// imputedColumnMean is the mean of column j over non-missing entries, 0 when
// the whole column is missing.
func imputedColumnMean(rows [][]float64, j int) float64 {
	var sum float64
	var count int
	for _, row := range rows {
		if domain.IsMissingDosage(row[j]) {
			continue
		}
		sum += row[j]
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// popVariance is the population variance (divisor n), matching the variance
// semantics the summary statistics are defined with.
func popVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := stat.Mean(xs, nil)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(xs))
}
