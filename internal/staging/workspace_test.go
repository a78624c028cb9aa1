package staging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspace_AcquireRelease(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	ws, err := NewWorkspace(root, "")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	tree, err := ws.Acquire("SM-G991B")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if want := filepath.Join(root, "kernel-SM-G991B"); tree.Repo != want {
		t.Errorf("Repo = %q, want %q", tree.Repo, want)
	}
	for _, dir := range tree.Dirs() {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s should be a directory: %v", dir, err)
		}
	}

	// Read-only leftovers must not block removal.
	ro := filepath.Join(tree.Source, "ro")
	if err := os.MkdirAll(filepath.Join(ro, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(ro, 0o555); err != nil {
		t.Fatal(err)
	}

	if err := ws.Release(tree); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	for _, dir := range tree.Dirs() {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("%s should be removed, Stat error = %v", dir, err)
		}
	}
}

func TestWorkspace_AcquireTwice(t *testing.T) {
	t.Parallel()
	ws, err := NewWorkspace(t.TempDir(), "mirror")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	tree, err := ws.Acquire("SM-A525F")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := ws.Acquire("SM-A525F"); err == nil {
		t.Error("second Acquire() expected error while tree is in use")
	}

	if err := ws.Release(tree); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	again, err := ws.Acquire("SM-A525F")
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if err := ws.Release(again); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
}

func TestWorkspace_AcquireClearsLeftovers(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	stale := filepath.Join(root, "kernel-SM-S911B", "old.txt")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := NewWorkspace(root, "kernel")
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	tree, err := ws.Acquire("SM-S911B")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer ws.Release(tree)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file should be gone, Stat error = %v", err)
	}
}
