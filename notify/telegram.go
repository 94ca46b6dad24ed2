package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of tgbotapi.BotAPI used for sending.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers the rendered text as a chat message to the subscriber id.
type Telegram struct {
	bot BotAPI
}

// NewTelegram creates a Telegram sink.
func NewTelegram(bot BotAPI) *Telegram {
	return &Telegram{bot: bot}
}

// Send posts n.Text to chat n.SubscriberID. tgbotapi takes no context, so
// ctx is only checked before the request; the bot's HTTP client timeout
// bounds the request itself.
func (t *Telegram) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: telegram: %w", ErrDispatch, err)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(n.SubscriberID, n.Text)); err != nil {
		return fmt.Errorf("%w: telegram chat %d: %w", ErrDispatch, n.SubscriberID, err)
	}
	return nil
}
