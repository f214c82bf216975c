package engine

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestEngineStaysStorageAgnostic ensures the computational engine never
// depends on ingestion or persistence backends. Callers wire those through
// the domain.ModelStore interface and the dosage matrix type instead.
func TestEngineStaysStorageAgnostic(t *testing.T) {
	forbidden := []string{
		"genomcore/internal/blob",
		"genomcore/internal/genosource",
		"genomcore/internal/persistence",
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "genomcore/internal/engine")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		for importPath := range pkg.Imports {
			for _, prefix := range forbidden {
				if importPath == prefix || strings.HasPrefix(importPath, prefix+"/") {
					seen[pkg.PkgPath+": "+importPath] = struct{}{}
				}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import in engine: %s", v)
		}
		t.Fatalf("found %d forbidden imports", len(violations))
	}
}
