package testutil

import (
	"context"
	"testing"
)

// testCtx stands in for testing.T.Context (Go 1.24+): a context that is
// cancelled when the test finishes.
func testCtx(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
