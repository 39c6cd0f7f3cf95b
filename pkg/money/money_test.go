package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1",
		"-1.005": "-1.01",
		"99.999": "100",
		"2.675":  "2.68",
	}
	for in, want := range cases {
		got := Round2(decimal.RequireFromString(in))
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "round %s: got %s want %s", in, got, want)
	}
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" aed ")
	require.NoError(t, err)
	assert.Equal(t, CurrencyAED, c)

	_, err = ParseCurrency("EUR")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestSum(t *testing.T) {
	got := Sum([]decimal.Decimal{
		decimal.RequireFromString("13125"),
		decimal.RequireFromString("-125.50"),
		decimal.RequireFromString("0.50"),
	})
	assert.True(t, got.Equal(decimal.RequireFromString("13000")))
}
