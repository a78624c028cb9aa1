package testutil

import (
	"fmt"
	"sync"
	"time"
)

// CycleStart is the wall time FixedClock reports: the instant every
// orchestrator test cycle begins at.
var CycleStart = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a settable fwbot.Clock. With a non-zero step every Now call
// moves it forward, so a cycle's start and finish stamps differ.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStubClock creates a StubClock set to t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock frozen at CycleStart.
func FixedClock() *StubClock {
	return NewStubClock(CycleStart)
}

// SteppingClock returns a StubClock that starts at CycleStart and
// advances by step after each reading.
func SteppingClock(step time.Duration) *StubClock {
	return &StubClock{now: CycleStart, step: step}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CycleIDs hands out "cycle-1", "cycle-2", ... in call order.
type CycleIDs struct {
	mu   sync.Mutex
	next int
}

func NewCycleIDs() *CycleIDs {
	return &CycleIDs{}
}

func (g *CycleIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("cycle-%d", g.next)
}
