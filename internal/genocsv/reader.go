// Package genocsv reads the CSV interchange formats accepted by the command
// line tools: genotype matrices (header of marker names, one row per
// individual) and id/value tables (phenotypes, breeding values).
package genocsv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"genomcore/pkg/domain"
)

// ReadGenotypeMatrix parses a dosage matrix from a CSV file shaped
//
//	id,chr1_101,chr1_204,...
//	P001,0,1,...
//
// Empty cells, "NA", and "." are missing dosages.
func ReadGenotypeMatrix(path string) (domain.GenotypeMatrix, error) {
	records, err := readCSV(path)
	if err != nil {
		return domain.GenotypeMatrix{}, err
	}
	if len(records) < 2 {
		return domain.GenotypeMatrix{}, fmt.Errorf("%s: need a header and at least one individual", path)
	}

	header := records[0]
	if len(header) < 2 {
		return domain.GenotypeMatrix{}, fmt.Errorf("%s: header needs an id column and at least one marker", path)
	}
	matrix := domain.GenotypeMatrix{
		MarkerNames: header[1:],
	}
	for line, rec := range records[1:] {
		if len(rec) != len(header) {
			return domain.GenotypeMatrix{}, fmt.Errorf("%s line %d: %d fields, expected %d", path, line+2, len(rec), len(header))
		}
		row := make([]float64, len(rec)-1)
		for j, cell := range rec[1:] {
			d, err := parseDosage(cell)
			if err != nil {
				return domain.GenotypeMatrix{}, fmt.Errorf("%s line %d marker %s: %w", path, line+2, header[j+1], err)
			}
			row[j] = d
		}
		matrix.IndividualIDs = append(matrix.IndividualIDs, rec[0])
		matrix.Dosages = append(matrix.Dosages, row)
	}
	if err := matrix.Validate(); err != nil {
		return domain.GenotypeMatrix{}, fmt.Errorf("%s: %w", path, err)
	}
	return matrix, nil
}

// ReadValueTable parses a two-column id,value CSV. A header row is detected
// by an unparseable value field and skipped.
func ReadValueTable(path string) (map[string]float64, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	values := make(map[string]float64, len(records))
	for line, rec := range records {
		if len(rec) != 2 {
			return nil, fmt.Errorf("%s line %d: %d fields, expected 2", path, line+1, len(rec))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			if line == 0 {
				continue // header
			}
			return nil, fmt.Errorf("%s line %d: parse value: %w", path, line+1, err)
		}
		values[rec[0]] = v
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: no value rows", path)
	}
	return values, nil
}

func parseDosage(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch cell {
	case "", "NA", ".":
		return domain.MissingDosage, nil
	}
	d, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("parse dosage %q: %w", cell, err)
	}
	return d, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}
