package common

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount with the currency's symbol and minor-unit
// precision. Unknown or empty codes fall back to a plain two-place amount.
func FormatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		s := amount.StringFixed(2)
		if code != "" {
			s += " " + strings.ToUpper(code)
		}
		return s
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
