package fwbot

import "context"

// Sink delivers a single message. Errors are retried by the dispatcher.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// DescriptionSetter is implemented by sinks that can update a channel's
// description. Used for the per-cycle "Last updated" marker.
type DescriptionSetter interface {
	SetDescription(ctx context.Context, channel, text string) error
}

// Notifier is the producer side of the notification queue.
type Notifier interface {
	// Enqueue adds a message without blocking.
	Enqueue(msg Message)

	// Close signals that no more messages will be enqueued.
	Close()

	// Done is closed once every queued message has been handled after Close.
	Done() <-chan struct{}
}
