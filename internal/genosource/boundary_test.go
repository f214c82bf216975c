package genosource

import (
	"testing"

	"genomcore/testutil"
)

// Ingestion sits below the engine: it produces dosage matrices, the engine
// consumes them, and neither imports the other.
func TestGenosourceNeverImportsEngine(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.EngineImportForbidden,
		"data loading must not depend on model computation")
}
