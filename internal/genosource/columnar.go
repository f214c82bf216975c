package genosource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"genomcore/internal/blob"
	"genomcore/pkg/domain"
)

// Columnar store array keys under a dataset reference. Layout follows the
// VCF-derived callset convention: a flat samples array, per-variant
// identifier arrays, and a variant-major genotype call array.
const (
	keySamples      = "samples.json"
	keyVariantIDs   = "variants/ids.json"
	keyVariantChrom = "variants/chrom.json"
	keyVariantPos   = "variants/pos.json"
	keyCalldataGT   = "calldata/gt.json"
)

// ColumnarSource reads datasets from a blob store holding JSON-encoded
// per-variant and per-sample arrays.
type ColumnarSource struct {
	store blob.Store
}

// NewColumnarSource wraps a blob store. A nil store yields a source whose
// loads fail with ErrUnavailable, letting callers construct unconditionally
// and branch on capability at use time.
func NewColumnarSource(store blob.Store) *ColumnarSource {
	return &ColumnarSource{store: store}
}

// OpenColumnar builds a columnar source over the environment-configured blob
// store. Configuration errors surface as ErrUnavailable.
func OpenColumnar(ctx context.Context) (*ColumnarSource, error) {
	store, err := blob.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewColumnarSource(store), nil
}

// LoadDataset decodes the dataset stored under ref. Marker names come from
// variants/ids.json when present, otherwise from variants/chrom.json and
// variants/pos.json joined as CHROM_POS.
func (s *ColumnarSource) LoadDataset(ctx context.Context, ref string) (Dataset, error) {
	if s == nil || s.store == nil {
		return Dataset{}, ErrUnavailable
	}

	var samples []string
	if err := s.readArray(ctx, ref, keySamples, &samples); err != nil {
		return Dataset{}, fmt.Errorf("load samples: %w", err)
	}

	var calls [][][2]int8
	if err := s.readArray(ctx, ref, keyCalldataGT, &calls); err != nil {
		return Dataset{}, fmt.Errorf("load genotype calls: %w", err)
	}

	markerNames, err := s.loadMarkerNames(ctx, ref, len(calls))
	if err != nil {
		return Dataset{}, err
	}

	return Dataset{Samples: samples, MarkerNames: markerNames, Calls: calls}, nil
}

func (s *ColumnarSource) loadMarkerNames(ctx context.Context, ref string, variants int) ([]string, error) {
	var ids []string
	err := s.readArray(ctx, ref, keyVariantIDs, &ids)
	if err == nil {
		return ids, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load variant ids: %w", err)
	}

	// No explicit IDs stored; derive names from chromosome and position.
	var chroms []string
	var positions []int64
	if err := s.readArray(ctx, ref, keyVariantChrom, &chroms); err != nil {
		return nil, fmt.Errorf("load variant chromosomes: %w", err)
	}
	if err := s.readArray(ctx, ref, keyVariantPos, &positions); err != nil {
		return nil, fmt.Errorf("load variant positions: %w", err)
	}
	if len(chroms) != variants || len(positions) != variants {
		return nil, domain.NewValidationError("variant arrays disagree: %d chromosomes, %d positions, %d call rows", len(chroms), len(positions), variants)
	}
	names := make([]string, variants)
	for i := range names {
		names[i] = fmt.Sprintf("%s_%d", chroms[i], positions[i])
	}
	return names, nil
}

func (s *ColumnarSource) readArray(ctx context.Context, ref, key string, out any) error {
	raw, err := blob.ReadAll(ctx, s.store, ref+"/"+key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
