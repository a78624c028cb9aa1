package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fwbot-go/internal/fwbot"
)

// TelegramSink posts messages to Telegram channels. A channel is either a
// numeric chat id or an "@username".
type TelegramSink struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramSink authenticates with token. An empty endpoint uses the
// public Bot API; local Bot API servers pass "http://host:port/bot%s/%s".
func NewTelegramSink(token, endpoint string) (*TelegramSink, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return &TelegramSink{bot: bot}, nil
}

func (s *TelegramSink) Send(ctx context.Context, msg fwbot.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var cfg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(msg.Channel, 10, 64); err == nil {
		cfg = tgbotapi.NewMessage(id, msg.Text)
	} else {
		cfg = tgbotapi.NewMessageToChannel(msg.Channel, msg.Text)
	}
	if msg.Action != nil {
		cfg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(msg.Action.Label, msg.Action.URL)),
		)
	}

	if _, err := s.bot.Send(cfg); err != nil {
		return fmt.Errorf("sending to %s: %w", msg.Channel, err)
	}
	return nil
}

func (s *TelegramSink) SetDescription(ctx context.Context, channel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.SetChatDescriptionConfig{Description: text}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.ChannelUsername = channel
	}
	if _, err := s.bot.Request(cfg); err != nil {
		return fmt.Errorf("setting description of %s: %w", channel, err)
	}
	return nil
}

var (
	_ fwbot.Sink              = (*TelegramSink)(nil)
	_ fwbot.DescriptionSetter = (*TelegramSink)(nil)
)
