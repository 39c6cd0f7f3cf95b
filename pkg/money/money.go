package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyAED Currency = "AED"
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
)

var ErrInvalidCurrency = errors.New("invalid_currency")

var supported = []Currency{CurrencyAED, CurrencyUSD, CurrencyCAD}

// Supported lists the currencies the dealership invoices in.
func Supported() []Currency {
	out := make([]Currency, len(supported))
	copy(out, supported)
	return out
}

func (c Currency) Valid() bool {
	for _, s := range supported {
		if c == s {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalizes a caller supplied code to one of the supported currencies.
func ParseCurrency(raw string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

// Round2 rounds to cents, half away from zero.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Sum adds amounts without intermediate rounding.
func Sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
