package decoder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hedeqiang/tokenwatch/event"
)

// ErrBadReturn is returned when eth_call output is not a single ABI word.
var ErrBadReturn = errors.New("decoder: malformed call result")

// PackBalanceOf returns the calldata for balanceOf(account).
func PackBalanceOf(account event.Address) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector[:]...)
	return append(data, common.LeftPadBytes(account.Bytes(), 32)...)
}

// UnpackUint256 decodes a single uint256 return value.
func UnpackUint256(ret []byte) (*big.Int, error) {
	if len(ret) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, want 32", ErrBadReturn, len(ret))
	}
	return new(big.Int).SetBytes(ret), nil
}
