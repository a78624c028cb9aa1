package fwbot

import (
	"context"
	"time"
)

// Cycle is one pass over the catalog.
type Cycle struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Models     int
}

const (
	CycleRunning   = "running"
	CycleCompleted = "completed"
	CycleCanceled  = "canceled"
	CycleFailed    = "failed"
)

// Release is one attempted kernel import.
type Release struct {
	Model     string
	Version   string
	UploadID  string
	PatchBase string
	Tag       string
	Outcome   Outcome
	CreatedAt time.Time
}

// History records cycles and kernel imports.
type History interface {
	StartCycle(ctx context.Context, c Cycle) error
	FinishCycle(ctx context.Context, id, status string, finishedAt time.Time) error
	RecordRelease(ctx context.Context, r Release) error
}
