package notify

import (
	"context"

	"fwbot-go/internal/fwbot"
)

// LogSink writes messages to the logger instead of a chat service.
type LogSink struct {
	logger fwbot.Logger
}

func NewLogSink(logger fwbot.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, msg fwbot.Message) error {
	args := []any{"channel", msg.Channel, "text", msg.Text}
	if msg.Action != nil {
		args = append(args, "action", msg.Action.Label, "url", msg.Action.URL)
	}
	s.logger.Info("notification", args...)
	return nil
}

func (s *LogSink) SetDescription(_ context.Context, channel, text string) error {
	s.logger.Info("channel description", "channel", channel, "text", text)
	return nil
}

var (
	_ fwbot.Sink              = (*LogSink)(nil)
	_ fwbot.DescriptionSetter = (*LogSink)(nil)
)
