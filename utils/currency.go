package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrencyIDR formats an amount as Indonesian Rupiah.
// Example: 85237 -> "Rp 85.237", 15000.5 -> "Rp 15.000,50"
func FormatCurrencyIDR(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}

	fixed := amount.StringFixed(2)
	parts := strings.SplitN(fixed, ".", 2)
	integerPart, fraction := parts[0], parts[1]

	var b strings.Builder
	for i, r := range integerPart {
		if i > 0 && (len(integerPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	if fraction == "00" {
		return sign + "Rp " + b.String()
	}
	return sign + "Rp " + b.String() + "," + fraction
}
