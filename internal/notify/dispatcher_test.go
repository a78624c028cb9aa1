package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fwbot-go/internal/fwbot"
)

// recordingSink records delivered messages. The first failures sends fail.
type recordingSink struct {
	mu       sync.Mutex
	failures int
	attempts int
	sent     []fwbot.Message
}

func (s *recordingSink) Send(_ context.Context, msg fwbot.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("flood wait")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) snapshot() (int, []fwbot.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, append([]fwbot.Message(nil), s.sent...)
}

func fastOptions() Options {
	return Options{MaxAttempts: 5, IdleDelay: 5 * time.Millisecond}
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go d.Run(ctx)
}

func waitDone(t *testing.T, d *Dispatcher) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not finish")
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, fastOptions(), nil)

	for _, text := range []string{"one", "two", "three"} {
		d.Enqueue(fwbot.Message{Channel: "@fw", Text: text})
	}
	runDispatcher(t, d)
	d.Close()
	waitDone(t, d)

	_, sent := sink.snapshot()
	var got []string
	for _, m := range sent {
		got = append(got, m.Text)
	}
	if strings.Join(got, ",") != "one,two,three" {
		t.Errorf("delivered = %v, want [one two three]", got)
	}
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	sink := &recordingSink{failures: 2}
	d := NewDispatcher(sink, fastOptions(), nil)

	d.Enqueue(fwbot.Message{Channel: "@fw", Text: "retry me"})
	d.Close()
	runDispatcher(t, d)
	waitDone(t, d)

	attempts, sent := sink.snapshot()
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(sent) != 1 {
		t.Errorf("delivered %d messages, want 1", len(sent))
	}
}

func TestDispatcher_DropsAfterMaxAttempts(t *testing.T) {
	sink := &recordingSink{failures: 5}
	d := NewDispatcher(sink, fastOptions(), nil)

	d.Enqueue(fwbot.Message{Channel: "@fw", Text: "doomed"})
	d.Enqueue(fwbot.Message{Channel: "@fw", Text: "fine"})
	d.Close()
	runDispatcher(t, d)
	waitDone(t, d)

	attempts, sent := sink.snapshot()
	if attempts != 6 {
		t.Errorf("attempts = %d, want 6 (5 for the dropped message, 1 for the next)", attempts)
	}
	if len(sent) != 1 || sent[0].Text != "fine" {
		t.Errorf("delivered = %v, want only \"fine\"", sent)
	}
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, fastOptions(), nil)

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for p := 0; p < 8; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					d.Enqueue(fwbot.Message{Text: "x"})
				}
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue blocked without a consumer")
	}
	if got := d.Pending(); got != 4000 {
		t.Errorf("Pending() = %d, want 4000", got)
	}
}

func TestDispatcher_CloseWhenEmpty(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, fastOptions(), nil)
	runDispatcher(t, d)
	d.Close()
	waitDone(t, d)
}

func TestDispatcher_ContextCanceled(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, fastOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	waitDone(t, d)
}

func TestDispatcher_TruncatesText(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, fastOptions(), nil)

	d.Enqueue(fwbot.Message{Text: strings.Repeat("a", MaxMessageLength+100)})
	d.Close()
	runDispatcher(t, d)
	waitDone(t, d)

	_, sent := sink.snapshot()
	if len(sent) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(sent))
	}
	if len(sent[0].Text) != MaxMessageLength {
		t.Errorf("delivered text length = %d, want %d", len(sent[0].Text), MaxMessageLength)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "hello", limit: 10, want: "hello"},
		{name: "exact", in: "hello", limit: 5, want: "hello"},
		{name: "ascii cut", in: "hello world", limit: 5, want: "hello"},
		{name: "bmp runes count once", in: "äöüß", limit: 3, want: "äöü"},
		{name: "astral rune counts twice", in: "ab😀c", limit: 4, want: "ab😀"},
		{name: "pair is not split", in: "ab😀c", limit: 3, want: "ab"},
		{name: "empty", in: "", limit: 4, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}
