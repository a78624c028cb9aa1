// Package vault archives downloaded kernel packages. Backends store opaque
// artifacts under slash-separated keys such as "kernel/SM-G991B/G991BXXU5CVLL.zip".
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"

	"fwbot-go/internal/fwbot"
)

// ErrNotFound is returned by GetArtifact for unknown keys.
var ErrNotFound = errors.New("artifact not found")

// Vault is an ArtifactVault that can check its own configuration.
type Vault interface {
	fwbot.ArtifactVault

	// ValidateSetup verifies the backend is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// copyExact copies r to w and checks that exactly size bytes were read.
func copyExact(w io.Writer, r io.Reader, size int64) error {
	written, err := io.Copy(w, r)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	return nil
}
