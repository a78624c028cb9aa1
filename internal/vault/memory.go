package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryVault keeps artifacts in memory. Safe for concurrent use.
type MemoryVault struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{artifacts: make(map[string][]byte)}
}

func (m *MemoryVault) PutArtifact(_ context.Context, key string, r io.Reader, size int64) error {
	var buf bytes.Buffer
	if err := copyExact(&buf, r, size); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[key] = buf.Bytes()
	return nil
}

func (m *MemoryVault) GetArtifact(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.artifacts[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

func (m *MemoryVault) HasArtifact(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.artifacts[key]
	return ok, nil
}

func (m *MemoryVault) ValidateSetup(context.Context) error { return nil }

// Len returns the number of stored artifacts.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.artifacts)
}

var _ Vault = (*MemoryVault)(nil)
