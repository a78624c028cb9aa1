package app

import "time"

// Session tracks one CLI invocation. Its ID tags every log line written
// during the invocation. Sessions that changed persisted state are
// snapshotted to the vault on Close.
type Session struct {
	ID        string
	Command   string
	StartedAt time.Time
	mutated   bool
}

// NewSession creates a session whose ID is the UTC start time.
func NewSession(command string, now time.Time) *Session {
	return &Session{
		ID:        now.UTC().Format("20060102T150405Z"),
		Command:   command,
		StartedAt: now,
	}
}

// MarkMutated records that the session changed the database.
func (s *Session) MarkMutated() { s.mutated = true }

// Mutated reports whether MarkMutated was called.
func (s *Session) Mutated() bool { return s.mutated }
