// Package event defines the core data structures for token transfer logs.
package event

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Hash represents a 32-byte hash.
type Hash = common.Hash

// Address represents a 20-byte account identifier. Hex returns the
// EIP-55 checksummed form.
type Address = common.Address

// Log represents a single event log emitted by the watched contract.
type Log struct {
	// Address is the contract address that emitted the event.
	Address Address

	// Topics contains the indexed event parameters.
	// Topics[0] is the event signature hash.
	Topics []Hash

	// Data holds the non-indexed event parameters (ABI-encoded).
	Data []byte

	// BlockNumber is the block in which this log was emitted.
	BlockNumber uint64

	// BlockHash is the hash of the block containing this log.
	BlockHash Hash

	// TxHash is the transaction hash that produced this log.
	TxHash Hash

	// TxIndex is the transaction's position in the block.
	TxIndex uint

	// LogIndex is the log's position in the block.
	LogIndex uint

	// Removed indicates whether this log was reverted due to a chain reorganization.
	Removed bool
}

// EventSignature returns the first topic (event signature hash), or a zero hash if no topics exist.
func (l Log) EventSignature() Hash {
	if len(l.Topics) > 0 {
		return l.Topics[0]
	}
	return Hash{}
}

// Transfer is a decoded ERC20 Transfer event. It lives for one poll cycle.
type Transfer struct {
	From  Address
	To    Address
	Value *big.Int

	BlockNumber uint64
	LogIndex    uint
	TxHash      Hash
}
