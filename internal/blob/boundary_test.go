package blob

import (
	"testing"

	"genomcore/testutil"
)

func TestBlobNeverImportsEngine(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.EngineImportForbidden,
		"byte storage must not depend on model computation")
}
