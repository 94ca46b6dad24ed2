// Package watcher drives the poll loop that turns token transfers into alerts.
package watcher

import (
	"context"
	"errors"
)

// ErrCircuitOpen is returned by Poll while the RPC circuit breaker is open.
var ErrCircuitOpen = errors.New("watcher: rpc circuit open")

// Watcher monitors a blockchain for transfers.
type Watcher interface {
	// Watch begins monitoring. Blocks until the context is cancelled
	// or Stop is called. Returns nil on graceful stop.
	Watch(ctx context.Context) error

	// Stop gracefully shuts down the watcher.
	Stop() error

	// OnCycle registers a callback invoked after every completed cycle.
	OnCycle(fn func(Result))

	// OnError registers a callback invoked when a cycle fails.
	OnError(fn func(error))
}

// Result summarizes one poll cycle.
type Result struct {
	// From and To bound the scanned range; both are zero for an idle cycle.
	From, To uint64

	// Idle is set when there were no new blocks.
	Idle bool

	Logs      int // logs returned by the node
	Skipped   int // logs that were not decodable ERC20 transfers of the token
	Transfers int // decoded transfers
	Sent      int // notifications delivered
	Failed    int // notifications skipped after a balance or dispatch failure
}
