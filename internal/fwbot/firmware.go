package fwbot

import (
	"context"

	"fwbot-go/internal/version"
)

func (o *Orchestrator) checkFirmware(ctx context.Context, m Model) {
	log := o.deps.Logger
	model := m.Firmware

	regions, err := o.deps.Catalog.RegionsFor(ctx, model)
	if err != nil {
		log.Warn("listing regions failed", "model", model, "error", err)
		return
	}

	current, err := o.deps.FirmwareMarkers.Get(ctx, model)
	if err != nil {
		log.Error("reading firmware marker failed", "model", model, "error", err)
		return
	}

	// Every region is compared against the running marker; a stale build
	// in one region must not hide a newer one in the next.
	found := false
	for _, region := range regions {
		rec, err := o.lookupFirmware(ctx, model, region)
		if err != nil {
			log.Warn("firmware lookup failed", "model", model, "region", region, "error", err)
			continue
		}
		if rec == nil {
			continue
		}
		found = true
		log.Debug("firmware found", "model", model, "region", region, "version", rec.BuildVersion)

		if !version.IsNewerFirmware(rec.BuildVersion, current) {
			continue
		}
		o.deps.Notifier.Enqueue(firmwareMessage(o.opts.FirmwareChannel, rec))
		if err := o.deps.FirmwareMarkers.Set(ctx, model, rec.BuildVersion); err != nil {
			log.Error("advancing firmware marker failed", "model", model, "version", rec.BuildVersion, "error", err)
			return
		}
		log.Info("new firmware", "model", model, "region", region, "version", rec.BuildVersion, "previous", current)
		current = rec.BuildVersion
	}
	if !found {
		log.Warn("firmware not found in any region", "model", model, "regions", regions)
	}
}

func (o *Orchestrator) lookupFirmware(ctx context.Context, model, region string) (*FirmwareRecord, error) {
	if err := o.deps.Throttle.Wait(ctx); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	return o.deps.Firmware.LatestFirmware(cctx, model, region)
}
