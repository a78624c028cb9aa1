package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// OpenPackage returns a reader over the gzip-compressed tarball inside a
// downloaded package. Vendors ship either the tarball itself or a zip
// holding a Kernel tarball next to platform sources; the format is
// detected from the leading bytes, not the file name.
func OpenPackage(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}

	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("reading package header: %w", err)
	}

	if !bytes.Equal(head[:n], zipMagic) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("rewinding package: %w", err)
		}
		return f, nil
	}
	f.Close()

	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("opening zip package: %w", err)
	}

	member := findKernelTarball(zr.File)
	if member == nil {
		zr.Close()
		return nil, fmt.Errorf("no kernel tarball in %s", name)
	}

	rc, err := member.Open()
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("opening %s: %w", member.Name, err)
	}
	return &zipMember{ReadCloser: rc, zr: zr}, nil
}

// findKernelTarball prefers a member named Kernel*.tar.gz and otherwise
// takes the first tarball.
func findKernelTarball(files []*zip.File) *zip.File {
	var fallback *zip.File
	for _, f := range files {
		base := strings.ToLower(path.Base(f.Name))
		if !strings.HasSuffix(base, ".tar.gz") {
			continue
		}
		if strings.HasPrefix(base, "kernel") {
			return f
		}
		if fallback == nil {
			fallback = f
		}
	}
	return fallback
}

type zipMember struct {
	io.ReadCloser
	zr *zip.ReadCloser
}

func (z *zipMember) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.zr.Close(); err == nil {
		err = cerr
	}
	return err
}
