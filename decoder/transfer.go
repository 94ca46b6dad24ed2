package decoder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/hedeqiang/tokenwatch/event"
)

// ErrNotTransfer is returned for logs that are not ERC20 Transfer events.
var ErrNotTransfer = errors.New("decoder: not an ERC20 transfer")

// DecodeTransfer decodes an ERC20 Transfer log. The sender and recipient are
// the low-order 20 bytes of topics[1] and topics[2]; the value is the data
// payload read as a big-endian unsigned integer.
func DecodeTransfer(log event.Log) (event.Transfer, error) {
	if len(log.Topics) == 0 || log.Topics[0] != TransferTopic {
		return event.Transfer{}, fmt.Errorf("%w: topic0 %s", ErrNotTransfer, log.EventSignature().Hex())
	}
	// ERC721 Transfer shares topic0 but indexes the token id as a fourth topic.
	if len(log.Topics) != 3 {
		return event.Transfer{}, fmt.Errorf("%w: %d topics", ErrNotTransfer, len(log.Topics))
	}

	var from, to event.Address
	copy(from[:], log.Topics[1][12:])
	copy(to[:], log.Topics[2][12:])

	return event.Transfer{
		From:        from,
		To:          to,
		Value:       new(big.Int).SetBytes(log.Data),
		BlockNumber: log.BlockNumber,
		LogIndex:    log.LogIndex,
		TxHash:      log.TxHash,
	}, nil
}
