package engine

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"genomcore/pkg/domain"
)

// DefaultSelectionIntensity is the standardized selection differential for
// top-5% truncation selection, the default intensity of the usefulness
// criterion.
const DefaultSelectionIntensity = 2.06

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// CrossRequest describes one hypothetical cross between two candidate
// parents. Genotype vectors must share the same marker order; when
// MarkerEffects is non-nil it must be parallel to them.
type CrossRequest struct {
	Parent1ID       string
	Parent2ID       string
	Parent1GEBV     float64
	Parent2GEBV     float64
	Parent1Genotype []float64
	Parent2Genotype []float64
	// MarkerEffects switches the variance computation from the parental
	// heterozygosity approximation to per-marker segregation variance.
	MarkerEffects []float64
	// Relationship, when non-nil, is the genomic relationship between the
	// parents (e.g. a G-matrix entry) and drives the inbreeding estimate.
	Relationship *float64
	// SelectionIntensity defaults to DefaultSelectionIntensity when <= 0.
	SelectionIntensity float64
	// Threshold for the superiority probability; defaults to the predicted
	// mean, i.e. the probability of exceeding the cross's own expectation.
	Threshold *float64
}

// PredictCross predicts the progeny distribution of a single cross under an
// additive-inheritance model: mid-parent mean, segregation variance,
// Schnell-Utz usefulness, normal superiority probability, inbreeding, and
// modified Rogers genetic distance.
func PredictCross(req CrossRequest) domain.CrossPrediction {
	intensity := req.SelectionIntensity
	if intensity <= 0 {
		intensity = DefaultSelectionIntensity
	}

	mean := (req.Parent1GEBV + req.Parent2GEBV) / 2

	var variance float64
	if req.MarkerEffects != nil {
		variance = segregationVariance(req.Parent1Genotype, req.Parent2Genotype, req.MarkerEffects)
	} else {
		// Approximation from genome-wide parental heterozygosity when no
		// marker effects are available.
		het1 := heterozygosity(req.Parent1Genotype)
		het2 := heterozygosity(req.Parent2Genotype)
		variance = 0.25 * (het1 + het2) * popVariance([]float64{req.Parent1GEBV, req.Parent2GEBV})
	}

	usefulness := mean
	if variance > 0 {
		usefulness = mean + intensity*math.Sqrt(variance)
	}

	threshold := mean
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	return domain.CrossPrediction{
		Parent1ID:             req.Parent1ID,
		Parent2ID:             req.Parent2ID,
		PredictedMean:         mean,
		PredictedVariance:     variance,
		Usefulness:            usefulness,
		SuperiorProgenyProb:   superiorProgenyProb(mean, variance, threshold),
		InbreedingCoefficient: inbreedingCoefficient(req.Parent1Genotype, req.Parent2Genotype, req.Relationship),
		GeneticDistance:       geneticDistance(req.Parent1Genotype, req.Parent2Genotype),
	}
}

// segregationVariance sums effect^2 * seg over markers, where seg depends
// only on the parental genotype codes: both heterozygous 0.5, exactly one
// heterozygous 0.25, both homozygous (same or different allele) 0.
func segregationVariance(g1, g2, effects []float64) float64 {
	var variance float64
	for i, a := range effects {
		het1 := g1[i] == 1
		het2 := g2[i] == 1
		var seg float64
		switch {
		case het1 && het2:
			seg = 0.5
		case het1 || het2:
			seg = 0.25
		}
		variance += a * a * seg
	}
	return variance
}

// superiorProgenyProb is P(progeny > threshold) under Normal(mean, variance).
// Zero or negative variance degenerates to a step function so no division by
// zero reaches the normal CDF.
func superiorProgenyProb(mean, variance, threshold float64) float64 {
	if variance <= 0 {
		if mean > threshold {
			return 1
		}
		return 0
	}
	z := (threshold - mean) / math.Sqrt(variance)
	return 1 - stdNormal.CDF(z)
}

// inbreedingCoefficient is 0.5*(1+r) when a genomic relationship r is
// supplied, otherwise half the identity-by-state fraction between the two
// genotype vectors.
func inbreedingCoefficient(g1, g2 []float64, relationship *float64) float64 {
	if relationship != nil {
		return 0.5 * (1 + *relationship)
	}
	if len(g1) == 0 {
		return 0
	}
	var same int
	for i := range g1 {
		if g1[i] == g2[i] {
			same++
		}
	}
	return 0.5 * float64(same) / float64(len(g1))
}

// geneticDistance is the modified Rogers distance: the root-mean-square of
// per-marker dosage differences scaled by 1/sqrt(2).
func geneticDistance(g1, g2 []float64) float64 {
	if len(g1) == 0 {
		return 0
	}
	var ss float64
	for i := range g1 {
		d := math.Abs(g1[i] - g2[i])
		ss += d * d
	}
	return math.Sqrt(ss / (2 * float64(len(g1))))
}

// heterozygosity is the fraction of markers with dosage exactly 1.
func heterozygosity(g []float64) float64 {
	if len(g) == 0 {
		return 0
	}
	var het int
	for _, d := range g {
		if d == 1 {
			het++
		}
	}
	return float64(het) / float64(len(g))
}
