package testutil

import (
	"testing"

	"fwbot-go/internal/staging"
	"fwbot-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault()
}

// NewTestWorkspace creates a staging workspace under a temp directory.
func NewTestWorkspace(t *testing.T) *staging.Workspace {
	t.Helper()
	ws, err := staging.NewWorkspace(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	return ws
}
