package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watch"
)

var token = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCommands(t *testing.T) (*Commands, *watch.Registry) {
	t.Helper()
	reg, err := watch.Open(context.Background(), state.NewMemory(state.State{}))
	require.NoError(t, err)
	return NewCommands(reg, token, quiet()), reg
}

func TestCommands(t *testing.T) {
	cmds, reg := newCommands(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		args    string
		want    string
	}{
		{"start", "start", "", "Welcome! Use /monitor <address> to monitor an address in ERC20 token " + token.Hex() + "."},
		{"status before", "status", "", "You are not monitoring any address. Use /monitor <address>."},
		{"missing arg", "monitor", "", "Usage: /monitor <address>"},
		{"too many args", "monitor", "0x1 0x2", "Usage: /monitor <address>"},
		{"invalid", "monitor", "not-an-address", "Invalid address."},
		{"valid", "monitor", "0xdac17f958d2ee523a2206206994597c13d831ec7", "You are now monitoring " + token.Hex() + "."},
		{"status after", "status", "", "You are monitoring " + token.Hex() + "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, ok := cmds.Handle(ctx, 42, tt.command, tt.args)
			require.True(t, ok)
			assert.Equal(t, tt.want, reply)
		})
	}

	assert.Len(t, reg.Watches(), 1)

	_, ok := cmds.Handle(ctx, 42, "help", "")
	assert.False(t, ok)
}

func TestCommands_InvalidLeavesWatchUnchanged(t *testing.T) {
	cmds, reg := newCommands(t)
	ctx := context.Background()

	cmds.Handle(ctx, 1, "monitor", token.Hex())
	cmds.Handle(ctx, 1, "monitor", "0xZZZ")

	w, ok := reg.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, token.Hex(), w.Address)
}

type brokenRegistry struct{}

func (brokenRegistry) Upsert(context.Context, int64, string) (event.Address, error) {
	return event.Address{}, errors.New("watch: save: read-only file system")
}

func (brokenRegistry) Lookup(int64) (state.Watch, bool) { return state.Watch{}, false }

func TestCommands_SaveFailure(t *testing.T) {
	cmds := NewCommands(brokenRegistry{}, token, quiet())
	reply, ok := cmds.Handle(context.Background(), 1, "monitor", token.Hex())
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(reply, "Could not save"))
}

type fakeAPI struct {
	updates chan tgbotapi.Update

	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) replies() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func TestTelegram_Run(t *testing.T) {
	cmds, reg := newCommands(t)
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	tg := NewTelegram(api, cmds, quiet())

	api.updates <- commandUpdate(99, "/monitor "+strings.ToLower(token.Hex()))
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 99}, Text: "hello"}}
	api.updates <- commandUpdate(99, "/status")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Run(ctx) }()

	require.Eventually(t, func() bool { return len(api.replies()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	replies := api.replies()
	assert.Equal(t, int64(99), replies[0].ChatID)
	assert.Equal(t, "You are now monitoring "+token.Hex()+".", replies[0].Text)
	assert.Equal(t, 7, replies[0].ReplyToMessageID)
	assert.Equal(t, "You are monitoring "+token.Hex()+".", replies[1].Text)

	_, ok := reg.Lookup(99)
	assert.True(t, ok)
	assert.True(t, api.stopped)
}
