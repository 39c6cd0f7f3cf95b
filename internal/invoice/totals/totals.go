// Package totals holds the invoice money arithmetic. Every step rounds to two
// decimal places half away from zero before the next step consumes it.
package totals

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/autotrade/internal/config"
	"github.com/smallbiznis/autotrade/pkg/money"
)

var hundred = decimal.NewFromInt(100)

// Line is anything that contributes a line total to an invoice.
type Line interface {
	LineTotal() decimal.Decimal
}

// Amount is a bare line total.
type Amount decimal.Decimal

func (a Amount) LineTotal() decimal.Decimal { return decimal.Decimal(a) }

type Totals struct {
	Subtotal  decimal.Decimal
	VATAmount decimal.Decimal
	Total     decimal.Decimal
}

func Round2(v decimal.Decimal) decimal.Decimal {
	return money.Round2(v)
}

// CalculateVAT returns round2(subtotal * rate / 100).
func CalculateVAT(subtotal, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return decimal.Zero
	}
	return Round2(subtotal.Mul(ratePercent).Div(hundred))
}

// CalculateTotals rounds the subtotal before VAT is taken on it.
func CalculateTotals[L Line](lines []L, ratePercent decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal())
	}
	subtotal := Round2(sum)
	vat := CalculateVAT(subtotal, ratePercent)
	return Totals{
		Subtotal:  subtotal,
		VATAmount: vat,
		Total:     Round2(subtotal.Add(vat)),
	}
}

// VATRateForCurrency reads the configured VAT percentage; unknown currencies are zero-rated.
func VATRateForCurrency(cfg config.BillingConfig, currency money.Currency) decimal.Decimal {
	return cfg.VATRateFor(currency.String())
}
