// Package tokenwatch watches one ERC20 token for Transfer events and alerts
// the subscribers watching the sender or the recipient.
package tokenwatch

import (
	"errors"

	"github.com/hedeqiang/tokenwatch/chain"
	"github.com/hedeqiang/tokenwatch/notify"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watch"
)

var (
	// ErrInvalidAddress is returned when a registration names a malformed address.
	ErrInvalidAddress = watch.ErrInvalidAddress

	// ErrRPC wraps every failure talking to the node.
	ErrRPC = chain.ErrRPC

	// ErrReverted is returned when the token contract reverts a balance query.
	ErrReverted = chain.ErrReverted

	// ErrCorrupt is returned when the persisted state cannot be read.
	ErrCorrupt = state.ErrCorrupt

	// ErrDispatch wraps notification delivery failures.
	ErrDispatch = notify.ErrDispatch

	// ErrCursorRegress is returned when the cursor would move backwards.
	ErrCursorRegress = watch.ErrCursorRegress

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("tokenwatch: already running")
)
