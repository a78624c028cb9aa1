package fwbot

import (
	"context"
	"fmt"
	"os"

	"fwbot-go/internal/version"
)

func (o *Orchestrator) checkKernel(ctx context.Context, m Model) {
	log := o.deps.Logger
	model := m.KernelModel()

	rec, err := o.lookupKernel(ctx, model)
	if err != nil {
		log.Warn("kernel lookup failed", "model", model, "error", err)
		return
	}
	if rec == nil {
		log.Warn("no kernel source available", "model", model)
		return
	}

	previous, err := o.deps.KernelMarkers.Get(ctx, model)
	if err != nil {
		log.Error("reading kernel marker failed", "model", model, "error", err)
		return
	}
	if !version.IsNewerKernel(rec.BuildVersion, previous) {
		return
	}

	// Advance before the import so the next cycle does not queue the
	// same release again while this one is still running.
	if err := o.deps.KernelMarkers.Set(ctx, model, rec.BuildVersion); err != nil {
		log.Error("advancing kernel marker failed", "model", model, "version", rec.BuildVersion, "error", err)
		return
	}
	log.Info("new kernel source", "model", model, "version", rec.BuildVersion, "previous", previous, "patch", rec.IsPatch())

	r := *rec
	o.downloadPool.SubmitOr(ctx, func(ctx context.Context) {
		o.processKernel(ctx, model, r, previous)
	}, func(err error) {
		log.Warn("kernel import dropped before start", "model", model, "version", r.BuildVersion, "error", err)
		o.restoreKernelMarker(context.WithoutCancel(ctx), model, previous)
	})
}

func (o *Orchestrator) lookupKernel(ctx context.Context, model string) (*KernelRecord, error) {
	if err := o.deps.Throttle.Wait(ctx); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	return o.deps.Kernel.LatestKernel(cctx, model)
}

// processKernel imports one release and restores the marker to previous
// when anything fails.
func (o *Orchestrator) processKernel(ctx context.Context, model string, rec KernelRecord, previous string) {
	log := o.deps.Logger

	res, err := o.importKernel(ctx, model, rec)
	if err == nil {
		return
	}

	log.Error("kernel import failed", "model", model, "version", rec.BuildVersion, "error", err)
	rctx := context.WithoutCancel(ctx)
	o.restoreKernelMarker(rctx, model, previous)
	o.recordRelease(rctx, model, rec, res.Tag, OutcomeFailed)
}

// restoreKernelMarker puts back the value seen before the optimistic
// advance, so the next cycle retries the release.
func (o *Orchestrator) restoreKernelMarker(ctx context.Context, model, previous string) {
	log := o.deps.Logger
	if err := o.deps.KernelMarkers.Set(ctx, model, previous); err != nil {
		log.Error("restoring kernel marker failed", "model", model, "previous", previous, "error", err)
		return
	}
	log.Info("kernel marker restored", "model", model, "previous", previous)
}

func (o *Orchestrator) importKernel(ctx context.Context, model string, rec KernelRecord) (PublishResult, error) {
	log := o.deps.Logger

	if err := ctx.Err(); err != nil {
		return PublishResult{}, fmt.Errorf("import not started: %w", err)
	}
	tree, err := o.deps.Workspace.Acquire(model)
	if err != nil {
		return PublishResult{}, fmt.Errorf("acquiring staging tree: %w", err)
	}
	defer func() {
		if err := o.deps.Workspace.Release(tree); err != nil {
			log.Warn("removing staging tree failed", "model", model, "error", err)
		}
	}()

	pkg, err := o.download(ctx, rec, tree.Download)
	if err != nil {
		return PublishResult{}, err
	}
	o.archive(ctx, model, rec, pkg)

	ignored, err := o.deps.Extractor.Extract(pkg, tree.Source)
	if err != nil {
		return PublishResult{}, fmt.Errorf("extracting %s: %w", pkg, err)
	}
	if len(ignored) > 0 {
		log.Warn("skipped oversized files", "model", model, "count", len(ignored))
	}

	res, err := o.deps.Publisher.Publish(ctx, PublishRequest{
		Model:    model,
		Version:  rec.BuildVersion,
		Source:   tree.Source,
		WorkTree: tree.Repo,
		Ignored:  ignored,
		Patch:    rec.IsPatch(),
	})
	if err != nil {
		return res, fmt.Errorf("publishing: %w", err)
	}

	o.recordRelease(ctx, model, rec, res.Tag, res.Outcome)
	if res.Outcome == OutcomeDuplicateSkipped {
		log.Info("kernel source already mirrored", "model", model, "tag", res.Tag)
		return res, nil
	}

	log.Info("kernel source published", "model", model, "tag", res.Tag, "commit", res.Commit)
	o.deps.Notifier.Enqueue(kernelMessage(o.opts.KernelChannel, o.opts.MirrorWebURL, model, rec, res.Tag))
	return res, nil
}

func (o *Orchestrator) download(ctx context.Context, rec KernelRecord, dir string) (string, error) {
	if err := o.deps.Throttle.Wait(ctx); err != nil {
		return "", err
	}
	dctx, cancel := context.WithTimeout(ctx, o.opts.DownloadTimeout)
	defer cancel()

	path, err := o.deps.Fetcher.Download(dctx, rec, dir)
	if err != nil {
		return "", fmt.Errorf("downloading kernel package: %w", err)
	}
	if path == "" {
		return "", ErrNoArtifact
	}
	return path, nil
}

// archive copies the raw package into the vault. Failures are logged only;
// the mirror is the primary output.
func (o *Orchestrator) archive(ctx context.Context, model string, rec KernelRecord, path string) {
	if o.deps.Vault == nil {
		return
	}
	log := o.deps.Logger
	key := ArtifactKey(model, rec.BuildVersion)

	f, err := os.Open(path)
	if err != nil {
		log.Warn("opening package for archive failed", "key", key, "error", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Warn("stat package for archive failed", "key", key, "error", err)
		return
	}
	if err := o.deps.Vault.PutArtifact(ctx, key, f, info.Size()); err != nil {
		log.Warn("archiving package failed", "key", key, "error", err)
		return
	}
	log.Debug("package archived", "key", key, "size", info.Size())
}

func (o *Orchestrator) recordRelease(ctx context.Context, model string, rec KernelRecord, tag string, outcome Outcome) {
	if o.deps.History == nil {
		return
	}
	err := o.deps.History.RecordRelease(ctx, Release{
		Model:     model,
		Version:   rec.BuildVersion,
		UploadID:  rec.UploadID,
		PatchBase: rec.PatchBaseVersion,
		Tag:       tag,
		Outcome:   outcome,
		CreatedAt: o.deps.Clock.Now(),
	})
	if err != nil {
		o.deps.Logger.Warn("recording release failed", "model", model, "version", rec.BuildVersion, "error", err)
	}
}
