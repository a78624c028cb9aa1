// Package archive unpacks vendor kernel source packages.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"fwbot-go/internal/fwbot"
)

// MaxFileSize is the largest regular file that is extracted. Larger files
// are skipped and reported to the caller, since the mirror host rejects
// them.
const MaxFileSize = 100_000_000

// Extractor unpacks gzip-compressed tar streams onto the local filesystem.
// Extraction is not transactional: a failure leaves whatever was written.
type Extractor struct {
	logger      fwbot.Logger
	maxFileSize int64
}

// NewExtractor creates an Extractor with the MaxFileSize ceiling.
func NewExtractor(logger fwbot.Logger) *Extractor {
	if logger == nil {
		logger = fwbot.NewNopLogger()
	}
	return &Extractor{logger: logger, maxFileSize: MaxFileSize}
}

// Extract opens the package at archivePath, which may be a bare .tar.gz or
// a zip wrapping one, and extracts it into targetDir. The package file is
// left in place.
func (e *Extractor) Extract(archivePath, targetDir string) ([]string, error) {
	rc, err := OpenPackage(archivePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return e.ExtractTarGz(rc, targetDir)
}

// ExtractTarGz extracts every entry of the stream into targetDir and
// returns the names of regular files skipped for exceeding the ceiling,
// in archive order. Running it twice over the same target is safe.
func (e *Extractor) ExtractTarGz(r io.Reader, targetDir string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	root, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating target: %w", err)
	}

	var ignored []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return ignored, fmt.Errorf("reading tar entry: %w", err)
		}

		out, ok := entryPath(root, hdr.Name)
		if !ok {
			e.logger.Warn("skipping entry outside target", "name", hdr.Name)
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := ensureDir(out, 0); err != nil {
				return ignored, fmt.Errorf("creating directory %s: %w", hdr.Name, err)
			}

		case tar.TypeSymlink:
			if err := prepareParent(out); err != nil {
				return ignored, fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
			}
			if err := e.writeSymlink(out, hdr.Linkname); err != nil {
				return ignored, fmt.Errorf("creating symlink %s: %w", hdr.Name, err)
			}
			// Permissions of a symlink are not meaningful.
			continue

		case tar.TypeReg:
			if hdr.Size > e.maxFileSize {
				e.logger.Warn("skipping oversized file", "name", hdr.Name, "size", hdr.Size)
				ignored = append(ignored, hdr.Name)
				continue
			}
			if err := prepareParent(out); err != nil {
				return ignored, fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
			}
			if err := writeFile(out, tr); err != nil {
				return ignored, fmt.Errorf("writing %s: %w", hdr.Name, err)
			}

		case tar.TypeLink:
			if err := prepareParent(out); err != nil {
				return ignored, fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
			}
			if err := e.writeHardLink(root, out, hdr.Linkname); err != nil {
				return ignored, fmt.Errorf("linking %s: %w", hdr.Name, err)
			}

		default:
			e.logger.Warn("skipping unsupported entry", "name", hdr.Name, "type", string(hdr.Typeflag))
			continue
		}

		if err := os.Chmod(out, os.FileMode(hdr.Mode&0o777)); err != nil {
			return ignored, fmt.Errorf("setting permissions on %s: %w", hdr.Name, err)
		}
	}

	return ignored, nil
}

// entryPath joins name onto root and rejects names escaping it.
func entryPath(root, name string) (string, bool) {
	p := filepath.Join(root, filepath.FromSlash(name))
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

// maxLinkDepth bounds symlink resolution in ensureDir.
const maxLinkDepth = 40

// prepareParent makes sure the directory holding path exists.
func prepareParent(path string) error {
	return ensureDir(filepath.Dir(path), 0)
}

// ensureDir creates path and any missing parents. A symlink met on the way,
// possibly dangling, is followed and its target created instead of
// replacing the link; relative targets resolve against the link's own
// directory.
func ensureDir(path string, depth int) error {
	if depth > maxLinkDepth {
		return fmt.Errorf("too many levels of symlinks at %s", path)
	}

	info, err := os.Lstat(path)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		return ensureDir(target, depth+1)
	case err == nil:
		return &fs.PathError{Op: "mkdir", Path: path, Err: syscall.ENOTDIR}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	if parent := filepath.Dir(path); parent != path {
		if err := ensureDir(parent, depth); err != nil {
			return err
		}
	}
	if err := os.Mkdir(path, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}

// writeSymlink replaces whatever is at path with a link to target. A
// non-empty directory in the way is kept and the link skipped.
func (e *Extractor) writeSymlink(path, target string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		if errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST) {
			e.logger.Warn("symlink would replace a non-empty directory, skipping", "path", path, "target", target)
			return nil
		}
		return err
	}
	return os.Symlink(target, path)
}

// writeHardLink links path to the earlier entry linkname. A source that is
// missing or outside root leaves an empty file in its place.
func (e *Extractor) writeHardLink(root, path, linkname string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	src, ok := entryPath(root, linkname)
	if !ok {
		e.logger.Warn("hard link target outside archive, writing empty file", "path", path, "target", linkname)
		return writeFile(path, strings.NewReader(""))
	}
	err := os.Link(src, path)
	if err == nil {
		return nil
	}
	e.logger.Warn("hard link failed, writing empty file", "path", path, "target", linkname, "error", err)
	return writeFile(path, strings.NewReader(""))
}

// writeFile streams r into path, truncating an existing file. Existing
// symlinks are written through.
func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if errors.Is(err, fs.ErrPermission) {
		// Left read-only by an earlier extraction.
		if cerr := os.Chmod(path, 0o644); cerr == nil {
			f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		}
	}
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var _ fwbot.Extractor = (*Extractor)(nil)
