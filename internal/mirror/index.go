package mirror

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// stageAll replaces the index with every regular file and symlink under
// workTree. Ignore files are not consulted: kernel trees ship .gitignore
// rules that would hide generated sources.
func stageAll(repo *git.Repository, workTree string) error {
	var entries []*index.Entry

	err := filepath.WalkDir(workTree, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == git.GitDirName && path != workTree {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(workTree, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		var e *index.Entry
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			e, err = symlinkEntry(repo.Storer, path)
		case d.Type().IsRegular():
			e, err = fileEntry(repo.Storer, path, info)
		default:
			return nil
		}
		if err != nil {
			return fmt.Errorf("staging %s: %w", rel, err)
		}
		e.Name = filepath.ToSlash(rel)
		e.ModifiedAt = info.ModTime()
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.Compare(entries[i].Name, entries[j].Name) < 0
	})
	return repo.Storer.SetIndex(&index.Index{Version: 2, Entries: entries})
}

func fileEntry(s storer.EncodedObjectStorer, path string, info fs.FileInfo) (*index.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hash, err := writeBlob(s, f, info.Size())
	if err != nil {
		return nil, err
	}
	mode := filemode.Regular
	if info.Mode().Perm()&0o111 != 0 {
		mode = filemode.Executable
	}
	return &index.Entry{Hash: hash, Mode: mode, Size: uint32(info.Size())}, nil
}

func symlinkEntry(s storer.EncodedObjectStorer, path string) (*index.Entry, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return nil, err
	}
	hash, err := writeBlob(s, strings.NewReader(target), int64(len(target)))
	if err != nil {
		return nil, err
	}
	return &index.Entry{Hash: hash, Mode: filemode.Symlink, Size: uint32(len(target))}, nil
}

func writeBlob(s storer.EncodedObjectStorer, r io.Reader, size int64) (plumbing.Hash, error) {
	obj := s.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(size)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.SetEncodedObject(obj)
}
