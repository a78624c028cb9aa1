// Package notify delivers queued messages to a chat channel from a single
// consumer goroutine.
package notify

import (
	"context"
	"sync"
	"time"
	"unicode/utf16"

	"golang.org/x/time/rate"

	"fwbot-go/internal/fwbot"
)

// MaxMessageLength is the longest text a message may carry, in UTF-16 code units.
const MaxMessageLength = 4096

// Options tunes delivery. Zero MaxAttempts and IdleDelay fall back to
// DefaultOptions; a zero RetryDelay or SendInterval means no wait.
type Options struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	IdleDelay    time.Duration
	SendInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts: 5,
		RetryDelay:  20 * time.Second,
		IdleDelay:   time.Second,
	}
}

// Dispatcher is an unbounded FIFO of messages drained by Run.
// Enqueue is safe for any number of producers.
type Dispatcher struct {
	sink    fwbot.Sink
	opts    Options
	logger  fwbot.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	queue  []fwbot.Message
	closed bool

	wake chan struct{}
	done chan struct{}
}

func NewDispatcher(sink fwbot.Sink, opts Options, logger fwbot.Logger) *Dispatcher {
	d := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = d.MaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = d.IdleDelay
	}
	if logger == nil {
		logger = fwbot.NewNopLogger()
	}

	limit := rate.Inf
	if opts.SendInterval > 0 {
		limit = rate.Every(opts.SendInterval)
	}
	return &Dispatcher{
		sink:    sink,
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Enqueue appends msg without blocking.
func (d *Dispatcher) Enqueue(msg fwbot.Message) {
	d.mu.Lock()
	d.queue = append(d.queue, msg)
	d.mu.Unlock()
	d.signal()
}

// Close marks the end of production. Run returns once the queue is empty.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Pending returns the number of queued messages.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) next() (msg fwbot.Message, ok, closed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return fwbot.Message{}, false, d.closed
	}
	msg = d.queue[0]
	d.queue[0] = fwbot.Message{}
	d.queue = d.queue[1:]
	return msg, true, d.closed
}

// Run delivers messages until Close has been called and the queue is
// drained, or ctx is canceled. Must be called at most once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)

	for {
		msg, ok, closed := d.next()
		if !ok {
			if closed {
				return nil
			}
			timer := time.NewTimer(d.opts.IdleDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-d.wake:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		if err := d.deliver(ctx, msg); err != nil {
			return err
		}
	}
}

// deliver sends msg with bounded retries. Only a canceled ctx is returned;
// exhausted retries drop the message.
func (d *Dispatcher) deliver(ctx context.Context, msg fwbot.Message) error {
	msg.Text = Truncate(msg.Text, MaxMessageLength)

	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		err := d.sink.Send(ctx, msg)
		if err == nil {
			d.logger.Debug("message delivered", "channel", msg.Channel, "attempt", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.Warn("message delivery failed", "channel", msg.Channel, "attempt", attempt, "error", err)

		if attempt < d.opts.MaxAttempts && d.opts.RetryDelay > 0 {
			timer := time.NewTimer(d.opts.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	d.logger.Error("dropping message", "channel", msg.Channel, "attempts", d.opts.MaxAttempts)
	return nil
}

// Truncate cuts s to at most limit UTF-16 code units without splitting a
// surrogate pair.
func Truncate(s string, limit int) string {
	units := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit {
			return s[:i]
		}
		units += n
	}
	return s
}

var _ fwbot.Notifier = (*Dispatcher)(nil)
