package fwbot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Options tunes the orchestrator. Zero values fall back to DefaultOptions.
type Options struct {
	Interval        time.Duration
	FirmwareWorkers int
	KernelWorkers   int
	DownloadWorkers int
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	FirmwareChannel string
	KernelChannel   string
	// MirrorWebURL, when set, adds a "Source" button to kernel notifications.
	MirrorWebURL string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Interval:        15 * time.Minute,
		FirmwareWorkers: 10,
		KernelWorkers:   10,
		DownloadWorkers: 2,
		RequestTimeout:  30 * time.Second,
		DownloadTimeout: 30 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.FirmwareWorkers <= 0 {
		o.FirmwareWorkers = d.FirmwareWorkers
	}
	if o.KernelWorkers <= 0 {
		o.KernelWorkers = d.KernelWorkers
	}
	if o.DownloadWorkers <= 0 {
		o.DownloadWorkers = d.DownloadWorkers
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = d.DownloadTimeout
	}
	return o
}

// Deps are the collaborators of an Orchestrator. History, Vault and
// Describer are optional.
type Deps struct {
	Catalog         Catalog
	Firmware        FirmwareProvider
	Kernel          KernelProvider
	Fetcher         Fetcher
	Extractor       Extractor
	Publisher       Publisher
	Workspace       Workspace
	FirmwareMarkers MarkerStore
	KernelMarkers   MarkerStore
	Notifier        Notifier
	Throttle        Throttle
	Describer       DescriptionSetter
	Vault           ArtifactVault
	History         History
	Logger          Logger
	Clock           Clock
	IDs             IDGenerator
}

// Orchestrator drives the periodic check cycle: firmware lookups,
// kernel lookups, and the download-extract-publish pipeline for new
// kernel sources.
type Orchestrator struct {
	opts Options
	deps Deps

	firmwarePool *Pool
	kernelPool   *Pool
	downloadPool *Pool
}

// NewOrchestrator validates deps and builds the three worker pools.
func NewOrchestrator(opts Options, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.Firmware == nil || deps.Kernel == nil:
		return nil, errors.New("firmware and kernel providers are required")
	case deps.Fetcher == nil || deps.Extractor == nil || deps.Publisher == nil:
		return nil, errors.New("fetcher, extractor and publisher are required")
	case deps.Workspace == nil:
		return nil, errors.New("workspace is required")
	case deps.FirmwareMarkers == nil || deps.KernelMarkers == nil:
		return nil, errors.New("marker stores are required")
	case deps.Notifier == nil:
		return nil, errors.New("notifier is required")
	}
	if deps.Throttle == nil {
		deps.Throttle = NewRateThrottle(0)
	}
	if deps.Logger == nil {
		deps.Logger = NewNopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.IDs == nil {
		deps.IDs = UUIDGenerator{}
	}

	opts = opts.withDefaults()
	return &Orchestrator{
		opts:         opts,
		deps:         deps,
		firmwarePool: NewPool("firmware-check", opts.FirmwareWorkers),
		kernelPool:   NewPool("kernel-check", opts.KernelWorkers),
		downloadPool: NewPool("kernel-download", opts.DownloadWorkers),
	}, nil
}

// Run repeats cycles until ctx is canceled. In oneshot mode it runs a
// single cycle, closes the notifier and waits for it to drain.
func (o *Orchestrator) Run(ctx context.Context, oneshot bool) error {
	log := o.deps.Logger
	for {
		if err := o.RunCycle(ctx); err != nil {
			log.Error("cycle failed", "error", err)
		}

		if oneshot {
			return o.shutdown(ctx)
		}

		log.Info("sleeping until next cycle", "interval", o.opts.Interval)
		timer := time.NewTimer(o.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return o.shutdown(ctx)
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) shutdown(ctx context.Context) error {
	o.deps.Notifier.Close()
	select {
	case <-o.deps.Notifier.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

// RunCycle submits one check per model to each pool, performs the cycle
// bookkeeping and waits for every pool to drain.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	log := o.deps.Logger

	models, err := o.deps.Catalog.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	cycle := Cycle{
		ID:        o.deps.IDs.New(),
		StartedAt: o.deps.Clock.Now(),
		Status:    CycleRunning,
		Models:    len(models),
	}
	if o.deps.History != nil {
		if err := o.deps.History.StartCycle(ctx, cycle); err != nil {
			log.Warn("recording cycle start failed", "cycle", cycle.ID, "error", err)
		}
	}
	log.Info("cycle started", "cycle", cycle.ID, "models", len(models))

	for _, m := range models {
		o.firmwarePool.Submit(ctx, func(ctx context.Context) { o.checkFirmware(ctx, m) })
		o.kernelPool.Submit(ctx, func(ctx context.Context) { o.checkKernel(ctx, m) })
	}

	o.updateDescriptions(ctx)

	// Kernel checks feed the download pool, so it drains last.
	o.firmwarePool.Wait()
	o.kernelPool.Wait()
	o.downloadPool.Wait()

	status := CycleCompleted
	if ctx.Err() != nil {
		status = CycleCanceled
	}
	if o.deps.History != nil {
		finished := o.deps.Clock.Now()
		if err := o.deps.History.FinishCycle(context.WithoutCancel(ctx), cycle.ID, status, finished); err != nil {
			log.Warn("recording cycle end failed", "cycle", cycle.ID, "error", err)
		}
	}
	log.Info("cycle finished", "cycle", cycle.ID, "status", status)
	return nil
}

// updateDescriptions stamps the channels with the cycle time.
func (o *Orchestrator) updateDescriptions(ctx context.Context) {
	if o.deps.Describer == nil {
		return
	}
	text := "Last updated: " + o.deps.Clock.Now().UTC().Format("2006-01-02 15:04 MST")

	seen := make(map[string]bool)
	for _, ch := range []string{o.opts.FirmwareChannel, o.opts.KernelChannel} {
		if ch == "" || seen[ch] {
			continue
		}
		seen[ch] = true

		cctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
		err := o.deps.Describer.SetDescription(cctx, ch, text)
		cancel()
		if err != nil {
			o.deps.Logger.Warn("updating channel description failed", "channel", ch, "error", err)
		}
	}
}
