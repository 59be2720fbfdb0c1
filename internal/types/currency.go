package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit; stored amounts equal major units
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// CurrencyExponent returns the number of minor-unit digits of an ISO currency
func CurrencyExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// MinorUnitsToDecimal converts an integer minor-unit amount to its major-unit value
func MinorUnitsToDecimal(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -CurrencyExponent(currency))
}

// FormatMinorUnits renders an amount for humans, e.g. 12345 USD -> "123.45 USD"
func FormatMinorUnits(amount int64, currency string) string {
	exp := CurrencyExponent(currency)
	return MinorUnitsToDecimal(amount, currency).StringFixed(exp) + " " + strings.ToUpper(currency)
}

func IsMatchingCurrency(a, b string) bool {
	return strings.EqualFold(a, b)
}
