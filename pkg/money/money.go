package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders an amount in minor units as a fixed two-decimal string, e.g. 2999 -> "29.99".
func Format(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}

// Display renders the amount with an upper-case currency code, e.g. "29.99 EUR".
func Display(cents int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return Format(cents)
	}
	return Format(cents) + " " + code
}

// LineTotal multiplies a unit price by a quantity in minor units.
func LineTotal(unitCents int64, quantity int) int64 {
	return decimal.NewFromInt(unitCents).Mul(decimal.NewFromInt(int64(quantity))).IntPart()
}
