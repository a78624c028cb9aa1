package fwbot_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fwbot-go/internal/fwbot"
	"fwbot-go/internal/testutil"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := fwbot.NewPool("test", 3)
	var counter testutil.ConcurrencyCounter
	var ran atomic.Int32

	for range 12 {
		p.Submit(t.Context(), func(context.Context) {
			defer counter.Enter()()
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		})
	}
	p.Wait()

	if got := ran.Load(); got != 12 {
		t.Errorf("ran %d tasks, want 12", got)
	}
	if got := counter.Max(); got > 3 {
		t.Errorf("max concurrency = %d, want <= 3", got)
	}
}

func TestPool_SubmitDoesNotBlock(t *testing.T) {
	p := fwbot.NewPool("test", 1)
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		for range 5 {
			p.Submit(t.Context(), func(context.Context) { <-release })
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked while the pool was saturated")
	}
	close(release)
	p.Wait()
}

func TestPool_SubmitOrReportsDroppedTasks(t *testing.T) {
	p := fwbot.NewPool("test", 1)
	block := make(chan struct{})
	p.Submit(t.Context(), func(context.Context) { <-block })

	ctx, cancel := context.WithCancel(t.Context())
	var ran atomic.Bool
	var dropErr atomic.Value
	p.SubmitOr(ctx, func(context.Context) { ran.Store(true) }, func(err error) { dropErr.Store(err) })
	cancel()
	close(block)
	p.Wait()

	if ran.Load() {
		t.Error("task queued behind a canceled context should not run")
	}
	if err, _ := dropErr.Load().(error); !errors.Is(err, context.Canceled) {
		t.Errorf("dropped callback error = %v, want context.Canceled", err)
	}
}

func TestNewPool_MinimumSize(t *testing.T) {
	p := fwbot.NewPool("download", 0)
	if p.Size() != 1 {
		t.Errorf("Size() = %d, want 1", p.Size())
	}
	if p.Name() != "download" {
		t.Errorf("Name() = %q", p.Name())
	}
}
