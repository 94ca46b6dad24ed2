package tokenwatch

import (
	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/watcher"
)

// Config holds the settings of an App.
type Config struct {
	// Token is the ERC20 contract to watch.
	Token event.Address

	// Poller configures the poll loop.
	Poller watcher.PollerConfig
}

// DefaultConfig returns a Config with the original bot's timings.
func DefaultConfig(token event.Address) Config {
	return Config{
		Token:  token,
		Poller: watcher.DefaultPollerConfig(),
	}
}
