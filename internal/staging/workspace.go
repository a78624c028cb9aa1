package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"fwbot-go/internal/fwbot"
)

// DefaultPrefix names staging trees "<prefix>-<model>".
const DefaultPrefix = "kernel"

// Workspace implements fwbot.Workspace on a local directory. Each model
// has at most one tree at a time.
type Workspace struct {
	root   string
	prefix string
	mu     sync.Mutex
	active map[string]bool
}

var _ fwbot.Workspace = (*Workspace)(nil)

// NewWorkspace creates root if needed.
func NewWorkspace(root, prefix string) (*Workspace, error) {
	if root == "" {
		return nil, errors.New("workspace root is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	return &Workspace{root: root, prefix: prefix, active: make(map[string]bool)}, nil
}

// Root returns the directory trees are created in.
func (w *Workspace) Root() string { return w.root }

// Acquire creates a fresh tree for model. Leftovers from an interrupted
// run are removed first.
func (w *Workspace) Acquire(model string) (*fwbot.Tree, error) {
	w.mu.Lock()
	if w.active[model] {
		w.mu.Unlock()
		return nil, fmt.Errorf("staging tree for %s already in use", model)
	}
	w.active[model] = true
	w.mu.Unlock()

	base := filepath.Join(w.root, w.prefix+"-"+safeName(model))
	tree := &fwbot.Tree{
		Model:    model,
		Repo:     base,
		Source:   base + ".src",
		Download: base + ".dl",
	}

	for _, dir := range tree.Dirs() {
		if err := forceRemove(dir); err != nil {
			w.done(model)
			return nil, fmt.Errorf("removing stale %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			w.done(model)
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return tree, nil
}

// Release removes every directory of tree.
func (w *Workspace) Release(tree *fwbot.Tree) error {
	if tree == nil {
		return nil
	}
	defer w.done(tree.Model)

	var errs []error
	for _, dir := range tree.Dirs() {
		if err := forceRemove(dir); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

func (w *Workspace) done(model string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.active, model)
}

func safeName(model string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(model)
}

// forceRemove is os.RemoveAll that also copes with directories extracted
// without owner write permission.
func forceRemove(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, werr error) error {
		if werr == nil && d.IsDir() {
			_ = os.Chmod(p, 0o755)
		}
		return nil
	})
	return os.RemoveAll(path)
}
