package engine

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"genomcore/pkg/domain"
)

// parallelPairThreshold is the pair count above which ranking shards the
// enumeration across workers. Below it the goroutine setup costs more than
// the arithmetic it saves.
const parallelPairThreshold = 4096

// RankRequest describes a cross-ranking run over a candidate parent set.
// ParentIDs, the genotype matrix rows, and GEBVs are parallel.
type RankRequest struct {
	ParentIDs []string
	Genotypes domain.GenotypeMatrix
	GEBVs     []float64
	// MarkerEffects, when non-nil, switches per-cross variance to the
	// segregation-variance path (see CrossRequest).
	MarkerEffects      []float64
	SelectionIntensity float64
	Threshold          *float64
	// MaxInbreeding drops pairs whose inbreeding coefficient exceeds it.
	MaxInbreeding float64
	// MinGeneticDistance drops pairs closer than it.
	MinGeneticDistance float64
	// TopN truncates the ranking; <= 0 returns every surviving pair.
	TopN   int
	RankBy domain.RankBy
}

// RankCrosses enumerates every unordered parent pair (i<j) exactly once,
// predicts each cross, applies the inbreeding and distance filters, and
// returns the survivors sorted descending by the RankBy criterion, truncated
// to TopN.
//
// The sort is stable: ties keep enumeration order, so results are
// deterministic for identical inputs. Pair computation is sharded across
// workers for large parent sets; shard results land in a single
// enumeration-ordered slice before the one stable sort, preserving the
// tie-break guarantee.
func RankCrosses(ctx context.Context, req RankRequest) ([]domain.CrossPrediction, error) {
	if !req.RankBy.Valid() {
		return nil, domain.ErrUnknownRankBy
	}
	n := len(req.ParentIDs)
	if req.Genotypes.Len() != n {
		return nil, domain.NewValidationError("genotype matrix has %d rows for %d parents", req.Genotypes.Len(), n)
	}
	if len(req.GEBVs) != n {
		return nil, domain.NewValidationError("gebv vector length %d does not match %d parents", len(req.GEBVs), n)
	}
	if req.MarkerEffects != nil && len(req.MarkerEffects) != req.Genotypes.MarkerCount() {
		return nil, &domain.ColumnOrderMismatchError{
			ModelMarkers: len(req.MarkerEffects),
			InputMarkers: req.Genotypes.MarkerCount(),
		}
	}
	if err := req.Genotypes.Validate(); err != nil {
		return nil, err
	}

	pairCount := n * (n - 1) / 2
	predictions := make([]domain.CrossPrediction, pairCount)

	workers := runtime.GOMAXPROCS(0)
	if pairCount < parallelPairThreshold || workers < 2 {
		if err := predictPairRange(ctx, req, predictions, 0, pairCount); err != nil {
			return nil, err
		}
	} else {
		grp, grpCtx := errgroup.WithContext(ctx)
		chunk := (pairCount + workers - 1) / workers
		for start := 0; start < pairCount; start += chunk {
			start := start
			end := min(start+chunk, pairCount)
			grp.Go(func() error {
				return predictPairRange(grpCtx, req, predictions, start, end)
			})
		}
		if err := grp.Wait(); err != nil {
			return nil, err
		}
	}

	kept := predictions[:0]
	for _, p := range predictions {
		if p.InbreedingCoefficient > req.MaxInbreeding {
			continue
		}
		if p.GeneticDistance < req.MinGeneticDistance {
			continue
		}
		kept = append(kept, p)
	}

	key := rankKey(req.RankBy)
	sort.SliceStable(kept, func(a, b int) bool { return key(kept[a]) > key(kept[b]) })

	if req.TopN > 0 && len(kept) > req.TopN {
		kept = kept[:req.TopN]
	}
	return kept, nil
}

// predictPairRange computes crosses for linearized pair indices [start,end)
// into out. Each index maps bijectively onto one unordered pair (i<j) in
// enumeration order, so shards never overlap.
func predictPairRange(ctx context.Context, req RankRequest, out []domain.CrossPrediction, start, end int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := len(req.ParentIDs)
	i, j := pairFromIndex(start, n)
	for k := start; k < end; k++ {
		out[k] = PredictCross(CrossRequest{
			Parent1ID:          req.ParentIDs[i],
			Parent2ID:          req.ParentIDs[j],
			Parent1GEBV:        req.GEBVs[i],
			Parent2GEBV:        req.GEBVs[j],
			Parent1Genotype:    req.Genotypes.Row(i),
			Parent2Genotype:    req.Genotypes.Row(j),
			MarkerEffects:      req.MarkerEffects,
			SelectionIntensity: req.SelectionIntensity,
			Threshold:          req.Threshold,
		})
		if j++; j == n {
			i++
			j = i + 1
		}
	}
	return nil
}

// pairFromIndex inverts the row-major enumeration of unordered pairs: index
// k over pairs (0,1),(0,2),...,(n-2,n-1) back to (i,j).
func pairFromIndex(k, n int) (int, int) {
	i := 0
	rowLen := n - 1
	for k >= rowLen {
		k -= rowLen
		i++
		rowLen--
	}
	return i, i + 1 + k
}

// rankKey selects the sort field for a validated criterion.
func rankKey(by domain.RankBy) func(domain.CrossPrediction) float64 {
	switch by {
	case domain.RankByMean:
		return func(p domain.CrossPrediction) float64 { return p.PredictedMean }
	case domain.RankByVariance:
		return func(p domain.CrossPrediction) float64 { return p.PredictedVariance }
	case domain.RankBySuperiorProb:
		return func(p domain.CrossPrediction) float64 { return p.SuperiorProgenyProb }
	default:
		return func(p domain.CrossPrediction) float64 { return p.Usefulness }
	}
}
