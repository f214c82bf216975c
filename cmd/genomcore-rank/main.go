// Command genomcore-rank enumerates and ranks candidate crosses from CSV
// genotypes and breeding values, printing the surviving crosses as JSON
// lines. With -model it pulls the model's marker effects from the configured
// store for segregation-variance prediction.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"genomcore/internal/engine"
	"genomcore/internal/genocsv"
	"genomcore/internal/persistence"
	"genomcore/pkg/domain"
)

func main() {
	genotypesPath := flag.String("genotypes", "", "CSV genotype matrix of candidate parents (id,marker...)")
	gebvsPath := flag.String("gebvs", "", "CSV breeding value table (id,gebv)")
	modelID := flag.String("model", "", "optional model ID whose marker effects drive the variance prediction")
	maxInbreeding := flag.Float64("max-inbreeding", 0.25, "drop crosses above this inbreeding coefficient")
	minDistance := flag.Float64("min-distance", 0.1, "drop crosses below this genetic distance")
	topN := flag.Int("top", 20, "number of top crosses to keep (0 keeps all)")
	rankBy := flag.String("rank-by", string(domain.RankByUsefulness), "ranking criterion: usefulness|mean|variance|superior_prob")
	intensity := flag.Float64("intensity", engine.DefaultSelectionIntensity, "selection intensity for the usefulness criterion")
	flag.Parse()

	if err := run(*genotypesPath, *gebvsPath, *modelID, *maxInbreeding, *minDistance, *topN, *rankBy, *intensity); err != nil {
		fmt.Fprintf(os.Stderr, "genomcore-rank: %v\n", err)
		os.Exit(1)
	}
}

func run(genotypesPath, gebvsPath, modelID string, maxInbreeding, minDistance float64, topN int, rankBy string, intensity float64) error {
	if genotypesPath == "" || gebvsPath == "" {
		return fmt.Errorf("-genotypes and -gebvs are required")
	}
	ctx := context.Background()

	matrix, err := genocsv.ReadGenotypeMatrix(genotypesPath)
	if err != nil {
		return err
	}
	gebvTable, err := genocsv.ReadValueTable(gebvsPath)
	if err != nil {
		return err
	}
	gebvs := make([]float64, matrix.Len())
	for i, id := range matrix.IndividualIDs {
		v, ok := gebvTable[id]
		if !ok {
			return fmt.Errorf("no breeding value for parent %s", id)
		}
		gebvs[i] = v
	}

	var effects []float64
	if modelID != "" {
		store, err := persistence.Open(ctx)
		if err != nil {
			return fmt.Errorf("open model store: %w", err)
		}
		defer func() { _ = store.Close() }()
		model, err := store.GetModel(ctx, modelID)
		if err != nil {
			return fmt.Errorf("load model %s: %w", modelID, err)
		}
		if model.MarkerCount != matrix.MarkerCount() {
			return &domain.ColumnOrderMismatchError{ModelMarkers: model.MarkerCount, InputMarkers: matrix.MarkerCount()}
		}
		effects = model.EffectVector()
	}

	ranked, err := engine.RankCrosses(ctx, engine.RankRequest{
		ParentIDs:          matrix.IndividualIDs,
		Genotypes:          matrix,
		GEBVs:              gebvs,
		MarkerEffects:      effects,
		SelectionIntensity: intensity,
		MaxInbreeding:      maxInbreeding,
		MinGeneticDistance: minDistance,
		TopN:               topN,
		RankBy:             domain.RankBy(rankBy),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for _, cross := range ranked {
		if err := enc.Encode(cross); err != nil {
			return err
		}
	}
	return nil
}
