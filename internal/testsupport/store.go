package testsupport

import (
	"testing"

	"revoice/internal/logging"
	"revoice/internal/workspace"
)

// MustOpenStore opens a workspace.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, root string) *workspace.Store {
	t.Helper()

	store, err := workspace.Open(root, logging.NewNop())
	if err != nil {
		t.Fatalf("workspace.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
