package shared

import "github.com/shopspring/decimal"

// CurrencyPrecision is the minor-unit precision used for every monetary
// value. Balance comparisons are exact at this precision.
const CurrencyPrecision = 2

// RoundMoney normalises an amount to currency precision, rounding half up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPrecision)
}

// ValidMoney reports whether the amount carries no sub-minor-unit digits.
func ValidMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(CurrencyPrecision))
}
