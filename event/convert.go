package event

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned when a string is not a well-formed account identifier.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress validates s as a 20-byte hex account identifier, with or
// without the "0x" prefix. All-lowercase and all-uppercase input is taken
// as is; mixed-case input must carry a valid EIP-55 checksum. The canonical
// form is Address.Hex().
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)
	digits := s
	if len(digits) == 2*common.AddressLength+2 {
		digits = digits[2:]
	}
	if isMixedCase(digits) && digits != addr.Hex()[2:] {
		return Address{}, fmt.Errorf("%w: bad checksum %q", ErrInvalidAddress, s)
	}
	return addr, nil
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// SameAddress compares a stored address string with addr, ignoring case.
func SameAddress(stored string, addr Address) bool {
	return strings.EqualFold(stored, addr.Hex())
}
