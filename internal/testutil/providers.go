package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"fwbot-go/internal/fwbot"
)

// RequestLog records the wall-clock time of every provider request so
// tests can check the spacing between them. A nil RequestLog ignores
// records.
type RequestLog struct {
	mu    sync.Mutex
	times []time.Time
}

func (l *RequestLog) record() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.times = append(l.times, time.Now())
	l.mu.Unlock()
}

// Times returns the recorded request times in ascending order.
func (l *RequestLog) Times() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.times)
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// StubFirmwareProvider serves firmware records keyed by "model/region".
// Keys present in Errors fail with that error.
type StubFirmwareProvider struct {
	mu      sync.Mutex
	Records map[string]*fwbot.FirmwareRecord
	Errors  map[string]error
	Log     *RequestLog
	calls   []string
}

func NewStubFirmwareProvider() *StubFirmwareProvider {
	return &StubFirmwareProvider{
		Records: make(map[string]*fwbot.FirmwareRecord),
		Errors:  make(map[string]error),
	}
}

// Set publishes version for model in region.
func (p *StubFirmwareProvider) Set(model, region, version string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Records[model+"/"+region] = &fwbot.FirmwareRecord{
		Model:        model,
		Region:       region,
		DeviceName:   "Galaxy " + model,
		OSVersion:    "14",
		BuildVersion: version,
		BuildDate:    "2024-01-10",
		DownloadURL:  "https://example.test/" + model + "/" + region + "/" + version,
	}
}

func (p *StubFirmwareProvider) LatestFirmware(ctx context.Context, model, region string) (*fwbot.FirmwareRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := model + "/" + region
	p.calls = append(p.calls, key)
	p.Log.record()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Errors[key]; err != nil {
		return nil, err
	}
	rec, ok := p.Records[key]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

// Calls returns the "model/region" keys looked up, in call order.
func (p *StubFirmwareProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// StubKernelProvider serves kernel records keyed by model.
type StubKernelProvider struct {
	mu      sync.Mutex
	Records map[string]*fwbot.KernelRecord
	Errors  map[string]error
	Log     *RequestLog
}

func NewStubKernelProvider() *StubKernelProvider {
	return &StubKernelProvider{
		Records: make(map[string]*fwbot.KernelRecord),
		Errors:  make(map[string]error),
	}
}

// Set publishes a full source release of version for model.
func (p *StubKernelProvider) Set(model, version string) {
	p.SetPatch(model, version, "")
}

// SetPatch publishes a release of version layered over base.
func (p *StubKernelProvider) SetPatch(model, version, base string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Records[model] = &fwbot.KernelRecord{
		Model:            model,
		BuildVersion:     version,
		UploadID:         "upload-" + version,
		PatchBaseVersion: base,
	}
}

func (p *StubKernelProvider) LatestKernel(ctx context.Context, model string) (*fwbot.KernelRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Log.record()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Errors[model]; err != nil {
		return nil, err
	}
	rec, ok := p.Records[model]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}
