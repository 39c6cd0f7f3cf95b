package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVATRateForDefaults(t *testing.T) {
	cfg := DefaultBillingConfig()

	assert.True(t, cfg.VATRateFor("AED").Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.VATRateFor("aed").Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.VATRateFor("USD").IsZero())
	assert.True(t, cfg.VATRateFor("CAD").IsZero())
}

func TestStaticHolderNormalizesPageLimit(t *testing.T) {
	holder := NewStaticBillingConfigHolder(BillingConfig{PaymentTermsDays: 14, PageLimitMax: 500})

	got := holder.Get()
	assert.Equal(t, MaxPageLimit, got.PageLimitMax)
	assert.Equal(t, "Net 30 days", got.PaymentTerms)
	assert.Equal(t, 14, got.PaymentTermsDays)
}

func TestValidateBillingConfigRejectsOutOfRangeVAT(t *testing.T) {
	err := validateBillingConfig(BillingConfig{VATRates: map[string]float64{"AED": 120}})
	require.Error(t, err)

	err = validateBillingConfig(BillingConfig{PaymentTermsDays: -1})
	require.Error(t, err)
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *BillingConfigHolder
	assert.Equal(t, 30, holder.Get().PaymentTermsDays)
}
