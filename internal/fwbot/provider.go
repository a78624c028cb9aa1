package fwbot

import "context"

// Catalog lists the devices to track.
type Catalog interface {
	// ListModels returns every tracked model.
	ListModels(ctx context.Context) ([]Model, error)

	// RegionsFor returns the regions to query for a firmware model, in
	// the order they should be tried.
	RegionsFor(ctx context.Context, model string) ([]string, error)
}

// FirmwareProvider looks up the latest firmware metadata.
// A nil record with a nil error means nothing is published for the
// model in that region.
type FirmwareProvider interface {
	LatestFirmware(ctx context.Context, model, region string) (*FirmwareRecord, error)
}

// KernelProvider looks up the latest kernel source release.
// A nil record with a nil error means the model has no kernel source.
type KernelProvider interface {
	LatestKernel(ctx context.Context, model string) (*KernelRecord, error)
}

// Fetcher downloads the kernel source package for a record into destDir
// and returns the path of the downloaded file.
type Fetcher interface {
	Download(ctx context.Context, rec KernelRecord, destDir string) (string, error)
}

// Throttle spaces outbound requests to a rate-limited host.
// Wait blocks until the caller may issue its next request.
type Throttle interface {
	Wait(ctx context.Context) error
}
