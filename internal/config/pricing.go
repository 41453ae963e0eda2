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

// PricingConfig is the billing rate card: one flat per-liter price. Multi-tier
// pricing and multi-currency are out of scope.
type PricingConfig struct {
	PricePerLiter decimal.Decimal
	Currency      string
}

type rawPricing struct {
	PricePerLiter float64 `mapstructure:"pricePerLiter"`
	Currency      string  `mapstructure:"currency"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		PricePerLiter: decimal.NewFromInt(100),
		Currency:      "INR",
	}
}

// PricingHolder serves the current pricing config and hot-reloads it when the
// config file changes on disk.
type PricingHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingHolder() (*PricingHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/milkledger/config")
	v.AddConfigPath("/etc/milkledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MILKLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PricingHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPricingConfig())
		return holder, nil
	}

	cfg, err := unmarshalPricing(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalPricing(v)
		if err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingHolder pins the holder to a fixed config. It never reloads.
func NewStaticPricingHolder(cfg PricingConfig) *PricingHolder {
	holder := &PricingHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func unmarshalPricing(v *viper.Viper) (PricingConfig, error) {
	var raw rawPricing
	if err := v.UnmarshalKey("pricing", &raw); err != nil {
		return PricingConfig{}, err
	}
	cfg := PricingConfig{
		PricePerLiter: decimal.NewFromFloat(raw.PricePerLiter),
		Currency:      strings.TrimSpace(raw.Currency),
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultPricingConfig().Currency
	}
	if err := validatePricing(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

func validatePricing(cfg PricingConfig) error {
	if !cfg.PricePerLiter.IsPositive() {
		return errors.New("pricing.pricePerLiter must be positive")
	}
	return nil
}
