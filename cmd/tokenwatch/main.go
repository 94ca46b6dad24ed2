package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hedeqiang/tokenwatch"
	"github.com/hedeqiang/tokenwatch/admin"
	"github.com/hedeqiang/tokenwatch/bot"
	"github.com/hedeqiang/tokenwatch/chain/ethereum"
	"github.com/hedeqiang/tokenwatch/internal/config"
	"github.com/hedeqiang/tokenwatch/middleware"
	"github.com/hedeqiang/tokenwatch/notify"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watcher"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tokenwatch exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	client := ethereum.New(cfg.RPCURL)
	defer client.Close()
	logger.Info("connected to node", "rpc", cfg.RPCURL)

	var (
		sinks    notify.Multi
		services []tokenwatch.Service
		api      *tgbotapi.BotAPI
	)

	if cfg.TelegramToken != "" {
		api, err = newBotAPI(cfg.TelegramToken, tgbotapi.APIEndpoint, longPollClientTimeout)
		if err != nil {
			return err
		}
		logger.Info("authorized on telegram", "bot", api.Self.UserName)
		if !cfg.DryRun {
			timeout := cfg.DispatchTimeout
			if timeout <= 0 {
				timeout = longPollClientTimeout
			}
			sendAPI, err := newBotAPI(cfg.TelegramToken, tgbotapi.APIEndpoint, timeout)
			if err != nil {
				return err
			}
			sinks = append(sinks, middleware.Sink(notify.NewTelegram(sendAPI),
				middleware.NewRateLimit(cfg.TelegramPerSecond, 1)))
		}
	}

	if cfg.AMQPURL != "" && !cfg.DryRun {
		conn, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer conn.Close()
		sinks = append(sinks, notify.NewAMQP(conn.Channel(), cfg.AMQPExchange))
	}

	var sink notify.Sink = sinks
	switch {
	case cfg.DryRun:
		logger.Warn("dry run, alerts are logged and not delivered")
		sink = notify.NewLog(logger)
	case len(sinks) == 1:
		sink = sinks[0]
	}

	pollerCfg := watcher.DefaultPollerConfig()
	pollerCfg.Interval = cfg.PollInterval
	pollerCfg.FirstDelay = cfg.FirstPollDelay
	pollerCfg.MaxBlockRange = cfg.MaxBlockRange
	pollerCfg.RPCTimeout = cfg.RPCTimeout
	pollerCfg.RPCRetries = cfg.RPCRetryAttempts
	pollerCfg.DispatchTimeout = cfg.DispatchTimeout
	pollerCfg.Workers = cfg.DispatchWorkers
	pollerCfg.Decimals = cfg.TokenDecimals

	app, err := tokenwatch.New(ctx, client, sink, tokenwatch.DefaultConfig(cfg.Token()),
		tokenwatch.WithStore(store),
		tokenwatch.WithPollerConfig(pollerCfg),
		tokenwatch.WithLogger(logger),
		tokenwatch.WithMiddleware(middleware.NewLogger(logger), middleware.NewMetrics()),
	)
	if err != nil {
		return err
	}

	if api != nil {
		commands := bot.NewCommands(app.Registry(), cfg.Token(), logger)
		services = append(services, bot.NewTelegram(api, commands, logger))
	}
	if cfg.AdminAddr != "" {
		services = append(services, admin.NewServer(cfg.AdminAddr, app.Registry(), logger))
	}
	app.Register(services...)

	logger.Info("tokenwatch started",
		"token", cfg.Token().Hex(),
		"interval", cfg.PollInterval,
		"backend", cfg.StateBackend,
	)
	return app.Run(ctx)
}

// longPollClientTimeout outlasts the 60s getUpdates long poll.
const longPollClientTimeout = 75 * time.Second

// newBotAPI connects to the Bot API. tgbotapi calls take no context, so the
// HTTP client timeout is their only deadline.
func newBotAPI(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return api, nil
}

func openStore(ctx context.Context, cfg config.Config) (state.Store, func(), error) {
	switch cfg.StateBackend {
	case "redis":
		client, err := state.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return state.NewRedis(client, cfg.RedisKey), func() { client.Close() }, nil
	default:
		return state.NewFile(cfg.StateFile), func() {}, nil
	}
}
