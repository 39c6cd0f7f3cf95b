package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// MaxPageLimit is the hard ceiling on list page sizes regardless of configuration.
const MaxPageLimit = 100

// BillingConfig holds the invoicing rules that operators can tune without a redeploy.
type BillingConfig struct {
	PaymentTermsDays int                `mapstructure:"paymentTermsDays"`
	PaymentTerms     string             `mapstructure:"paymentTerms"`
	VATRates         map[string]float64 `mapstructure:"vatRates"`
	PageLimitMax     int                `mapstructure:"pageLimitMax"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		PaymentTermsDays: 30,
		PaymentTerms:     "Net 30 days",
		VATRates:         map[string]float64{"AED": 5},
		PageLimitMax:     MaxPageLimit,
	}
}

// VATRateFor returns the VAT percentage applied to sales in the given currency.
// Currencies without a configured rate are zero-rated.
func (c BillingConfig) VATRateFor(currency string) decimal.Decimal {
	for code, rate := range c.VATRates {
		if strings.EqualFold(code, strings.TrimSpace(currency)) {
			return decimal.NewFromFloat(rate)
		}
	}
	return decimal.Zero
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder pinned to cfg, without file watching.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(normalizeBillingConfig(cfg))
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/autotrade")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AUTOTRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.paymentTermsDays", defaults.PaymentTermsDays)
	v.SetDefault("billing.paymentTerms", defaults.PaymentTerms)
	v.SetDefault("billing.vatRates", defaults.VATRates)
	v.SetDefault("billing.pageLimitMax", defaults.PageLimitMax)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(normalizeBillingConfig(cfg))

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(normalizeBillingConfig(updated))
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.PaymentTermsDays < 0 {
		return errors.New("billing.paymentTermsDays cannot be negative")
	}
	for code, rate := range cfg.VATRates {
		if rate < 0 || rate > 100 {
			return errors.New("billing.vatRates." + code + " must be between 0 and 100")
		}
	}
	return nil
}

func normalizeBillingConfig(cfg BillingConfig) BillingConfig {
	if strings.TrimSpace(cfg.PaymentTerms) == "" {
		cfg.PaymentTerms = DefaultBillingConfig().PaymentTerms
	}
	if cfg.PageLimitMax <= 0 || cfg.PageLimitMax > MaxPageLimit {
		cfg.PageLimitMax = MaxPageLimit
	}
	if cfg.VATRates == nil {
		cfg.VATRates = map[string]float64{}
	}
	return cfg
}
