package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundUSD_HalfUp(t *testing.T) {
	assert.Equal(t, "10.13", RoundUSD(d("10.125")).String())
	assert.Equal(t, "10.12", RoundUSD(d("10.1249")).String())
	assert.Equal(t, "0.01", RoundUSD(d("0.005")).String())
}

func TestIsUSDAmount(t *testing.T) {
	assert.True(t, IsUSDAmount(d("0.01")))
	assert.True(t, IsUSDAmount(d("1000")))
	assert.False(t, IsUSDAmount(d("0")))
	assert.False(t, IsUSDAmount(d("-5")))
	assert.False(t, IsUSDAmount(d("1.001")))
}

func TestPercent(t *testing.T) {
	assert.True(t, d("30").Equal(Percent(d("1000"), d("3"))))
	assert.True(t, d("35").Equal(Percent(d("1000"), d("3.5"))))
}

func TestCryptoPlaces(t *testing.T) {
	assert.Equal(t, int32(2), CryptoPlaces("usdt"))
	assert.Equal(t, int32(6), CryptoPlaces("DOGE"))
	assert.Equal(t, int32(8), CryptoPlaces("BTC"))
	assert.Equal(t, int32(8), CryptoPlaces("SOL"))
}

func TestToCrypto(t *testing.T) {
	assert.Equal(t, "0.01666667", ToCrypto(d("1000"), d("60000"), 8).String())
	assert.Equal(t, "1000", ToCrypto(d("1000"), d("1"), 2).String())
	assert.True(t, ToCrypto(d("1000"), decimal.Zero, 8).IsZero())

	tests := []struct {
		name   string
		usd    string
		rate   string
		places int32
		want   string
	}{
		// exact quotient 0.00130012499967...
		{"just below half stays down", "85.07", "65432.17", 8, "0.00130012"},
		{"exact half rounds up", "1", "8", 2, "0.13"},
		{"stablecoin cents", "1000.005", "1", 2, "1000.01"},
		{"six places", "10", "3", 6, "3.333333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToCrypto(d(tt.usd), d(tt.rate), tt.places)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, got.Equal(d(tt.usd).DivRound(d(tt.rate), 40).Round(tt.places)))
		})
	}
}

func TestToUSD(t *testing.T) {
	assert.Equal(t, "1000", ToUSD(d("0.01666667"), d("60000")).String())
	assert.Equal(t, "3500.5", ToUSD(d("1.0001428"), d("3500")).String())
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "210.00", FormatUSD(d("210")))
	assert.Equal(t, "0.50", FormatUSD(d("0.5")))
}

func TestMinMax(t *testing.T) {
	assert.True(t, d("2").Equal(Max(d("1"), d("2"))))
	assert.True(t, d("1").Equal(Min(d("1"), d("2"))))
}
