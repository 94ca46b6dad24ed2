// Package bot implements the Telegram command surface for registering watches.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watch"
)

// Registry is the part of watch.Registry the commands use.
type Registry interface {
	Upsert(ctx context.Context, subscriberID int64, text string) (event.Address, error)
	Lookup(subscriberID int64) (state.Watch, bool)
}

// Commands turns chat commands into registry operations and reply texts.
type Commands struct {
	registry Registry
	token    event.Address
	logger   *slog.Logger
}

// NewCommands creates the command set for token.
func NewCommands(reg Registry, token event.Address, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{registry: reg, token: token, logger: logger.With("component", "bot")}
}

// Handle runs command for chatID and returns the reply. ok is false for
// unknown commands, which get no reply.
func (c *Commands) Handle(ctx context.Context, chatID int64, command, args string) (reply string, ok bool) {
	switch command {
	case "start":
		c.logger.Debug("start", "chat", chatID)
		return fmt.Sprintf("Welcome! Use /monitor <address> to monitor an address in ERC20 token %s.", c.token.Hex()), true
	case "monitor":
		return c.monitor(ctx, chatID, args), true
	case "status":
		if w, found := c.registry.Lookup(chatID); found {
			return fmt.Sprintf("You are monitoring %s.", w.Address), true
		}
		return "You are not monitoring any address. Use /monitor <address>.", true
	default:
		return "", false
	}
}

func (c *Commands) monitor(ctx context.Context, chatID int64, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return "Usage: /monitor <address>"
	}

	addr, err := c.registry.Upsert(ctx, chatID, fields[0])
	switch {
	case errors.Is(err, watch.ErrInvalidAddress):
		return "Invalid address."
	case err != nil:
		c.logger.Error("registration failed", "chat", chatID, "error", err)
		return "Could not save your watch, please try again later."
	}

	c.logger.Info("watch registered", "chat", chatID, "address", addr.Hex())
	return fmt.Sprintf("You are now monitoring %s.", addr.Hex())
}
