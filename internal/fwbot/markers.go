package fwbot

import "context"

// MarkerStore persists the last observed build version per model.
// Implementations must be safe for concurrent use.
type MarkerStore interface {
	// Get returns the stored version, or "" when the model is unknown.
	Get(ctx context.Context, model string) (string, error)

	// Set stores version for model. Setting "" restores the unknown state.
	Set(ctx context.Context, model, version string) error
}

// MarkerLister is implemented by stores that can enumerate their contents.
type MarkerLister interface {
	All(ctx context.Context) (map[string]string, error)
}

// Marker kinds. Firmware and kernel versions are tracked independently.
const (
	MarkerFirmware = "firmware"
	MarkerKernel   = "kernel"
)
