package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of tgbotapi.BotAPI the update loop uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram long-polls the Bot API and answers commands.
type Telegram struct {
	api      API
	commands *Commands
	logger   *slog.Logger
}

// NewTelegram creates the update loop.
func NewTelegram(api API, commands *Commands, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{api: api, commands: commands, logger: logger.With("component", "telegram")}
}

// Run processes updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handle(ctx, update)
		}
	}
}

func (t *Telegram) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	reply, ok := t.commands.Handle(ctx, msg.Chat.ID, msg.Command(), msg.CommandArguments())
	if !ok {
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ReplyToMessageID = msg.MessageID
	if _, err := t.api.Send(out); err != nil {
		t.logger.Warn("reply failed", "chat", msg.Chat.ID, "error", err)
	}
}
