// Package money holds the rounding and conversion rules shared by every
// USD and crypto amount in the ledger.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// USDPlaces is the number of decimal places kept for USD amounts.
const USDPlaces int32 = 2

// DefaultCryptoPlaces applies to currencies without a configured precision.
const DefaultCryptoPlaces int32 = 8

var hundred = decimal.NewFromInt(100)

// RoundUSD rounds half away from zero to cents.
func RoundUSD(d decimal.Decimal) decimal.Decimal {
	return d.Round(USDPlaces)
}

// IsUSDAmount reports whether d is positive and carries no more than two decimals.
func IsUSDAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(USDPlaces))
}

// Percent returns amount × pct / 100 without rounding.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// CryptoPlaces returns the display precision for a currency symbol when the
// registry does not carry one.
func CryptoPlaces(symbol string) int32 {
	switch strings.ToUpper(symbol) {
	case "USDT", "USDC", "DAI", "BUSD":
		return 2
	case "XRP", "DOGE":
		return 6
	default:
		return DefaultCryptoPlaces
	}
}

// ToCrypto converts a USD amount into units of a currency priced at
// usdPerUnit, rounded half-up to places.
func ToCrypto(usd, usdPerUnit decimal.Decimal, places int32) decimal.Decimal {
	if usdPerUnit.IsZero() {
		return decimal.Zero
	}
	return usd.DivRound(usdPerUnit, places)
}

// ToUSD converts a crypto amount into USD at usdPerUnit, rounded to cents.
func ToUSD(amount, usdPerUnit decimal.Decimal) decimal.Decimal {
	return RoundUSD(amount.Mul(usdPerUnit))
}

// FormatUSD renders d with exactly two decimals.
func FormatUSD(d decimal.Decimal) string {
	return d.StringFixed(USDPlaces)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
