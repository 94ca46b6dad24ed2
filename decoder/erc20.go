// Package decoder provides ERC20 log decoding and call encoding.
package decoder

import (
	"fmt"

	"github.com/hedeqiang/tokenwatch/event"
	abiutil "github.com/hedeqiang/tokenwatch/internal/abi"
)

// erc20ABI is the minimal ERC20 interface the watcher needs.
const erc20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "from", "type": "address"},
			{"indexed": true, "name": "to", "type": "address"},
			{"indexed": false, "name": "value", "type": "uint256"}
		],
		"name": "Transfer",
		"type": "event"
	}
]`

var (
	// TransferTopic is topic0 of Transfer(address,address,uint256).
	TransferTopic event.Hash

	balanceOfSelector [4]byte
)

func init() {
	entries, err := abiutil.ParseJSON([]byte(erc20ABI))
	if err != nil {
		panic(fmt.Sprintf("decoder: embedded ERC20 ABI: %v", err))
	}

	transfer, ok := abiutil.Find(entries, abiutil.KindEvent, "Transfer")
	if !ok {
		panic("decoder: embedded ERC20 ABI has no Transfer event")
	}
	TransferTopic = transfer.Topic()

	balanceOf, ok := abiutil.Find(entries, abiutil.KindFunction, "balanceOf")
	if !ok {
		panic("decoder: embedded ERC20 ABI has no balanceOf function")
	}
	balanceOfSelector = balanceOf.Selector()
}

// SignatureTopic computes topic0 for a human-readable event signature,
// e.g. "Approval(address indexed owner, address indexed spender, uint256 value)".
func SignatureTopic(sig string) (event.Hash, error) {
	entry, err := abiutil.ParseSignature(abiutil.KindEvent, sig)
	if err != nil {
		return event.Hash{}, fmt.Errorf("decoder: %w", err)
	}
	return entry.Topic(), nil
}
