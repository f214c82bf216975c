// Command genomcore-train fits an RR-BLUP model from CSV (or columnar-store)
// genotypes and CSV phenotypes, persists the artifact through the configured
// model store, and prints a JSON summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"genomcore/internal/engine"
	"genomcore/internal/genocsv"
	"genomcore/internal/genosource"
	"genomcore/internal/persistence"
	"genomcore/pkg/domain"
)

type summary struct {
	ModelID      string  `json:"model_id"`
	ModelName    string  `json:"model_name"`
	TraitName    string  `json:"trait_name"`
	Individuals  int     `json:"individuals"`
	Markers      int     `json:"markers"`
	Heritability float64 `json:"heritability"`
	Accuracy     float64 `json:"accuracy"`
}

func main() {
	genotypesPath := flag.String("genotypes", "", "CSV genotype matrix (id,marker...); exclusive with -columnar")
	columnarRef := flag.String("columnar", "", "columnar dataset reference in the configured blob store; exclusive with -genotypes")
	phenotypesPath := flag.String("phenotypes", "", "CSV phenotype table (id,value)")
	name := flag.String("name", "", "model name")
	trait := flag.String("trait", "", "trait name")
	heritability := flag.Float64("heritability", 0.5, "trait heritability in (0,1]")
	flag.Parse()

	if err := run(*genotypesPath, *columnarRef, *phenotypesPath, *name, *trait, *heritability); err != nil {
		fmt.Fprintf(os.Stderr, "genomcore-train: %v\n", err)
		os.Exit(1)
	}
}

func run(genotypesPath, columnarRef, phenotypesPath, name, trait string, heritability float64) error {
	if (genotypesPath == "") == (columnarRef == "") {
		return fmt.Errorf("exactly one of -genotypes or -columnar is required")
	}
	if phenotypesPath == "" {
		return fmt.Errorf("-phenotypes is required")
	}
	if name == "" || trait == "" {
		return fmt.Errorf("-name and -trait are required")
	}
	ctx := context.Background()

	matrix, err := loadMatrix(ctx, genotypesPath, columnarRef)
	if err != nil {
		return err
	}
	values, err := genocsv.ReadValueTable(phenotypesPath)
	if err != nil {
		return err
	}

	store, err := persistence.Open(ctx)
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}
	defer func() { _ = store.Close() }()

	service := engine.NewService(store)
	artifact, err := service.TrainModel(ctx, name, trait, matrix, domain.PhenotypeMap(values), heritability)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary{
		ModelID:      artifact.ID,
		ModelName:    artifact.ModelName,
		TraitName:    artifact.TraitName,
		Individuals:  artifact.TrainingPopulationSize,
		Markers:      artifact.MarkerCount,
		Heritability: artifact.Heritability,
		Accuracy:     artifact.Accuracy,
	})
}

func loadMatrix(ctx context.Context, genotypesPath, columnarRef string) (domain.GenotypeMatrix, error) {
	if genotypesPath != "" {
		return genocsv.ReadGenotypeMatrix(genotypesPath)
	}
	source, err := genosource.OpenColumnar(ctx)
	if err != nil {
		return domain.GenotypeMatrix{}, err
	}
	dataset, err := source.LoadDataset(ctx, columnarRef)
	if err != nil {
		return domain.GenotypeMatrix{}, fmt.Errorf("load dataset %s: %w", columnarRef, err)
	}
	return dataset.DosageMatrix()
}
