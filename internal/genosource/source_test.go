package genosource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"testing"

	"genomcore/internal/blob"
	"genomcore/pkg/domain"
)

func TestDosageMatrixTransposesAndCounts(t *testing.T) {
	ds := Dataset{
		Samples:     []string{"S1", "S2"},
		MarkerNames: []string{"m1", "m2", "m3"},
		Calls: [][][2]int8{
			{{0, 0}, {0, 1}}, // m1: S1 ref/ref, S2 het
			{{1, 1}, {0, 0}}, // m2: S1 hom alt, S2 ref/ref
			{{0, 1}, {1, 1}}, // m3: S1 het, S2 hom alt
		},
	}
	matrix, err := ds.DosageMatrix()
	if err != nil {
		t.Fatalf("dosage matrix: %v", err)
	}
	want := [][]float64{
		{0, 2, 1},
		{1, 0, 2},
	}
	for i, row := range want {
		for j, d := range row {
			if matrix.Dosages[i][j] != d {
				t.Fatalf("dosage[%d][%d]: expected %v, got %v", i, j, d, matrix.Dosages[i][j])
			}
		}
	}
	if matrix.IndividualIDs[0] != "S1" || matrix.MarkerNames[2] != "m3" {
		t.Fatalf("labels not carried: %+v", matrix)
	}
}

func TestDosageMatrixMissingCall(t *testing.T) {
	ds := Dataset{
		Samples:     []string{"S1"},
		MarkerNames: []string{"m1", "m2"},
		Calls: [][][2]int8{
			{{MissingCall, 1}},
			{{MissingCall, MissingCall}},
		},
	}
	matrix, err := ds.DosageMatrix()
	if err != nil {
		t.Fatalf("dosage matrix: %v", err)
	}
	// A single missing allele makes the whole dosage missing.
	for j := 0; j < 2; j++ {
		if !math.IsNaN(matrix.Dosages[0][j]) {
			t.Fatalf("expected missing dosage at %d, got %v", j, matrix.Dosages[0][j])
		}
	}
}

func TestDosageMatrixRejectsRaggedCalls(t *testing.T) {
	ds := Dataset{
		Samples:     []string{"S1", "S2"},
		MarkerNames: []string{"m1"},
		Calls:       [][][2]int8{{{0, 0}}},
	}
	var verr *domain.ValidationError
	if _, err := ds.DosageMatrix(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for short call row, got %v", err)
	}
}

func putJSON(t *testing.T, store blob.Store, key string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", key, err)
	}
	if _, err := store.Put(context.Background(), key, bytes.NewReader(raw)); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func TestColumnarLoadDataset(t *testing.T) {
	store := blob.NewMemory()
	putJSON(t, store, "trial-2026/samples.json", []string{"S1", "S2"})
	putJSON(t, store, "trial-2026/variants/ids.json", []string{"m1", "m2"})
	putJSON(t, store, "trial-2026/calldata/gt.json", [][][2]int8{
		{{0, 1}, {1, 1}},
		{{0, 0}, {MissingCall, 0}},
	})

	src := NewColumnarSource(store)
	ds, err := src.LoadDataset(context.Background(), "trial-2026")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ds.Samples) != 2 || len(ds.MarkerNames) != 2 || len(ds.Calls) != 2 {
		t.Fatalf("unexpected dataset shape: %+v", ds)
	}
	if ds.MarkerNames[0] != "m1" {
		t.Fatalf("expected explicit variant ids, got %v", ds.MarkerNames)
	}
}

func TestColumnarDerivesNamesFromChromPos(t *testing.T) {
	store := blob.NewMemory()
	putJSON(t, store, "ds/samples.json", []string{"S1"})
	putJSON(t, store, "ds/variants/chrom.json", []string{"1A", "2B"})
	putJSON(t, store, "ds/variants/pos.json", []int64{1200, 88000})
	putJSON(t, store, "ds/calldata/gt.json", [][][2]int8{
		{{0, 0}},
		{{1, 1}},
	})

	src := NewColumnarSource(store)
	ds, err := src.LoadDataset(context.Background(), "ds")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.MarkerNames[0] != "1A_1200" || ds.MarkerNames[1] != "2B_88000" {
		t.Fatalf("expected CHROM_POS names, got %v", ds.MarkerNames)
	}
}

// faultyStore fails Get on one key with an opaque error, standing in for a
// backend failure that is not a missing object.
type faultyStore struct {
	blob.Store
	failKey string
	failErr error
}

func (s *faultyStore) Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if key == s.failKey {
		return blob.Info{}, nil, s.failErr
	}
	return s.Store.Get(ctx, key)
}

// The CHROM_POS fallback triggers only on a missing ids array. Any other
// error loading it must surface instead of being papered over.
func TestColumnarOpaqueIDErrorSurfaces(t *testing.T) {
	store := blob.NewMemory()
	putJSON(t, store, "ds/samples.json", []string{"S1"})
	putJSON(t, store, "ds/variants/chrom.json", []string{"1"})
	putJSON(t, store, "ds/variants/pos.json", []int64{101})
	putJSON(t, store, "ds/calldata/gt.json", [][][2]int8{{{0, 0}}})

	failErr := errors.New("operation error S3: GetObject, AccessDenied")
	src := NewColumnarSource(&faultyStore{Store: store, failKey: "ds/variants/ids.json", failErr: failErr})
	_, err := src.LoadDataset(context.Background(), "ds")
	if !errors.Is(err, failErr) {
		t.Fatalf("expected the backend error to surface, got %v", err)
	}
}

func TestColumnarMissingArrays(t *testing.T) {
	store := blob.NewMemory()
	putJSON(t, store, "ds/samples.json", []string{"S1"})
	// calldata/gt.json absent.
	src := NewColumnarSource(store)
	if _, err := src.LoadDataset(context.Background(), "ds"); err == nil {
		t.Fatalf("expected error for missing call data")
	}
}

func TestColumnarNilStoreUnavailable(t *testing.T) {
	src := NewColumnarSource(nil)
	if _, err := src.LoadDataset(context.Background(), "ds"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenColumnarBadDriver(t *testing.T) {
	t.Setenv("GENOMCORE_BLOB_DRIVER", "bogus")
	if _, err := OpenColumnar(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemorySourceRoundTrip(t *testing.T) {
	src := NewMemorySource()
	src.AddDataset("ds", Dataset{Samples: []string{"S1"}})
	ds, err := src.LoadDataset(context.Background(), "ds")
	if err != nil || len(ds.Samples) != 1 {
		t.Fatalf("load: %v %+v", err, ds)
	}
	if _, err := src.LoadDataset(context.Background(), "other"); err == nil {
		t.Fatalf("expected error for unknown ref")
	}
}
