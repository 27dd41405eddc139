package domain

import (
	"testing"

	"medicopro/testutil"
)

// The domain layer is shared by every adapter and must not depend on any of
// them.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "pkg/domain must stay free of internal packages")
}
