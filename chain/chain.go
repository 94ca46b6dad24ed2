// Package chain provides the read-only view of the blockchain the poller needs.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/filter"
)

// ErrRPC marks failures talking to the node: transport errors, JSON-RPC
// error objects and unparseable responses. Poll cycles that hit it end
// without advancing the cursor.
var ErrRPC = errors.New("chain: rpc failure")

// ErrReverted marks an eth_call that the node executed and the contract
// reverted. Repeating the call at the same state gives the same answer.
var ErrReverted = errors.New("chain: execution reverted")

// Chain is the core abstraction for reading the token contract.
type Chain interface {
	// LatestBlock returns the most recent block number.
	LatestBlock(ctx context.Context) (uint64, error)

	// FetchLogs retrieves event logs matching the given query.
	FetchLogs(ctx context.Context, query filter.Query) ([]event.Log, error)

	// BalanceOf returns the token balance of account at the latest block.
	BalanceOf(ctx context.Context, token, account event.Address) (*big.Int, error)
}
