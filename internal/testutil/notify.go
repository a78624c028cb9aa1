package testutil

import (
	"context"
	"sync"

	"fwbot-go/internal/fwbot"
)

// RecordingNotifier collects enqueued messages. Close closes Done
// immediately since nothing is delivered.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []fwbot.Message
	closed   bool
	done     chan struct{}
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{done: make(chan struct{})}
}

func (n *RecordingNotifier) Enqueue(msg fwbot.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *RecordingNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.done)
	}
}

func (n *RecordingNotifier) Done() <-chan struct{} { return n.done }

// Messages returns a copy of everything enqueued so far.
func (n *RecordingNotifier) Messages() []fwbot.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]fwbot.Message(nil), n.messages...)
}

// Closed reports whether Close was called.
func (n *RecordingNotifier) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Description is one SetDescription call.
type Description struct {
	Channel string
	Text    string
}

// RecordingDescriber records channel description updates.
type RecordingDescriber struct {
	mu    sync.Mutex
	calls []Description
}

func (d *RecordingDescriber) SetDescription(_ context.Context, channel, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Description{Channel: channel, Text: text})
	return nil
}

func (d *RecordingDescriber) Calls() []Description {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Description(nil), d.calls...)
}
