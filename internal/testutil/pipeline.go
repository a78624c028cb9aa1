package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fwbot-go/internal/fwbot"
)

// ConcurrencyCounter tracks how many callers are inside a section at once.
type ConcurrencyCounter struct {
	mu      sync.Mutex
	current int
	max     int
}

// Enter marks the start of a section and returns the function that ends it.
func (c *ConcurrencyCounter) Enter() func() {
	c.mu.Lock()
	c.current++
	if c.current > c.max {
		c.max = c.current
	}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.current--
		c.mu.Unlock()
	}
}

// Max returns the highest concurrency observed.
func (c *ConcurrencyCounter) Max() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max
}

// FakeFetcher writes a small placeholder package for every download.
// Delay holds each download open, which makes pool bounds observable.
type FakeFetcher struct {
	Delay    time.Duration
	Err      error
	NoFile   bool
	Inflight ConcurrencyCounter

	mu    sync.Mutex
	calls []fwbot.KernelRecord
}

func (f *FakeFetcher) Download(ctx context.Context, rec fwbot.KernelRecord, destDir string) (string, error) {
	defer f.Inflight.Enter()()

	f.mu.Lock()
	f.calls = append(f.calls, rec)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	if f.NoFile {
		return "", nil
	}
	path := filepath.Join(destDir, rec.Model+"-"+rec.BuildVersion+".zip")
	if err := os.WriteFile(path, []byte("package "+rec.BuildVersion), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Calls returns the records downloaded so far.
func (f *FakeFetcher) Calls() []fwbot.KernelRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fwbot.KernelRecord(nil), f.calls...)
}

// FakeExtractor writes one file into the target and reports Ignored.
type FakeExtractor struct {
	Ignored []string
	Err     error
}

func (e *FakeExtractor) Extract(archivePath, targetDir string) ([]string, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if err := os.WriteFile(filepath.Join(targetDir, "Makefile"), []byte("all:\n"), 0o644); err != nil {
		return nil, err
	}
	return e.Ignored, nil
}

// FakePublisher records publish requests and answers with Outcome, or
// fails with Err.
type FakePublisher struct {
	Outcome fwbot.Outcome
	Err     error

	mu       sync.Mutex
	requests []fwbot.PublishRequest
}

func (p *FakePublisher) Publish(_ context.Context, req fwbot.PublishRequest) (fwbot.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	tag := req.Model + "/" + req.Version
	if p.Err != nil {
		return fwbot.PublishResult{Outcome: fwbot.OutcomeFailed, Tag: tag}, p.Err
	}
	return fwbot.PublishResult{Outcome: p.Outcome, Tag: tag, Commit: "0123abcd"}, nil
}

// Requests returns the publish requests seen so far.
func (p *FakePublisher) Requests() []fwbot.PublishRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fwbot.PublishRequest(nil), p.requests...)
}
