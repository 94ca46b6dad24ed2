package notify

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits scales v down by 10^decimals and prints it without trailing
// zeros, e.g. 1500000000000000000 with 18 decimals is "1.5".
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)

	digits := abs.String()
	d := int(decimals)
	if d > 0 {
		if len(digits) <= d {
			digits = strings.Repeat("0", d-len(digits)+1) + digits
		}
		whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}

// Render fills n.Text with the alert message.
func Render(n Notification, decimals uint8) Notification {
	prep := "from"
	if n.Direction == Outbound {
		prep = "to"
	}
	n.Text = fmt.Sprintf("Transaction detected %s %s\nvalue: %s\ncurrent %s balance: %s tokens.\n",
		prep,
		n.Counterparty.Hex(),
		FormatUnits(n.Value, decimals),
		n.Watched.Hex(),
		FormatUnits(n.Balance, decimals),
	)
	return n
}
