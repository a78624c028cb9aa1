package mirror

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// replaceTracked removes every path recorded in the index from workTree and
// moves the contents of source in. Untracked files are left alone.
func replaceTracked(repo *git.Repository, source, workTree string) error {
	idx, err := repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	for _, e := range idx.Entries {
		p := filepath.Join(workTree, filepath.FromSlash(e.Name))
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing tracked %s: %w", e.Name, err)
		}
	}
	return overlay(source, workTree)
}

// overlaySubtree moves source/dir over workTree/dir, keeping everything
// outside dir.
func overlaySubtree(source, workTree, dir string) error {
	src := filepath.Join(source, dir)
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("patch has no %s directory: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("patch entry %s is not a directory", dir)
	}
	return overlay(src, filepath.Join(workTree, dir))
}

// overlay moves every entry under src to the same relative path under dst,
// replacing what is there. Directories missing in dst are moved whole.
// src is consumed.
func overlay(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		existing, err := os.Lstat(target)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if err := os.Rename(path, target); err != nil {
				return fmt.Errorf("moving %s: %w", rel, err)
			}
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		case err != nil:
			return err
		}

		if d.IsDir() {
			if existing.IsDir() {
				return nil
			}
			if err := os.Remove(target); err != nil {
				return fmt.Errorf("replacing %s: %w", rel, err)
			}
			if err := os.Rename(path, target); err != nil {
				return fmt.Errorf("moving %s: %w", rel, err)
			}
			return filepath.SkipDir
		}

		if existing.IsDir() {
			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("replacing %s: %w", rel, err)
			}
		}
		if err := os.Rename(path, target); err != nil {
			return fmt.Errorf("moving %s: %w", rel, err)
		}
		return nil
	})
}
