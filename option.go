package tokenwatch

import (
	"log/slog"
	"time"

	"github.com/hedeqiang/tokenwatch/middleware"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watcher"
)

// Option configures an App.
type Option func(*App)

// WithStore sets where the watch list and cursor are persisted.
func WithStore(s state.Store) Option {
	return func(a *App) {
		a.store = s
	}
}

// WithMiddleware adds middleware around notification delivery.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, mw...)
	}
}

// WithPollerConfig overrides the default polling configuration.
func WithPollerConfig(cfg watcher.PollerConfig) Option {
	return func(a *App) {
		a.config.Poller = cfg
	}
}

// WithPollInterval sets the polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(a *App) {
		a.config.Poller.Interval = d
	}
}

// WithFirstPollDelay sets the wait before the first cycle.
func WithFirstPollDelay(d time.Duration) Option {
	return func(a *App) {
		a.config.Poller.FirstDelay = d
	}
}

// WithMaxBlockRange caps the blocks scanned per cycle.
func WithMaxBlockRange(n uint64) Option {
	return func(a *App) {
		a.config.Poller.MaxBlockRange = n
	}
}

// WithDecimals sets the token's decimals used for display.
func WithDecimals(d uint8) Option {
	return func(a *App) {
		a.config.Poller.Decimals = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}
