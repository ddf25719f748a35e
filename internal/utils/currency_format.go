package utils

import "github.com/shopspring/decimal"

// zeroDecimalCurrencies are ISO 4217 currencies with no minor unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// DecimalPlacesFor returns the presentation precision for a currency:
// 0 for zero-decimal currencies, 2 otherwise.
func DecimalPlacesFor(currencyCode string) int32 {
	if _, ok := zeroDecimalCurrencies[currencyCode]; ok {
		return 0
	}
	return 2
}

// RoundForCurrency rounds an amount to the currency's presentation precision.
// Intermediate computation stays unrounded; call this exactly once, at the end.
func RoundForCurrency(amount decimal.Decimal, currencyCode string) decimal.Decimal {
	return amount.Round(DecimalPlacesFor(currencyCode))
}

// FormatWithPrecision formats an amount with the given precision.
func FormatWithPrecision(amount decimal.Decimal, precision int) string {
	return amount.Round(int32(precision)).String()
}
