// Package config loads engine configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
)

// EnvPrefix prefixes every variable the engine reads.
const EnvPrefix = "PAYMENTS_"

// Config contains the engine configuration
type Config struct {
	// IncentivePercentage of the amount staked by the sender, and by the
	// beneficiary when it disputes a refund.
	IncentivePercentage decimal.Decimal `env:"INCENTIVE_PERCENTAGE" envDefault:"10"`
	MaxRemarkLength     int             `env:"MAX_REMARK_LENGTH" envDefault:"50" validate:"gt=0"`
	MaxFees             int             `env:"MAX_FEES" envDefault:"50" validate:"gt=0"`
	MaxDiscounts        int             `env:"MAX_DISCOUNTS" envDefault:"10" validate:"gte=0"`
	// CancelBufferBlocks between a refund request and its automatic execution.
	CancelBufferBlocks   types.BlockNumber `env:"CANCEL_BUFFER_BLOCKS" envDefault:"14400" validate:"gt=0"`
	MaxScheduledPerBlock int               `env:"MAX_SCHEDULED_PER_BLOCK" envDefault:"50" validate:"gt=0"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	EnableMetrics bool   `env:"ENABLE_METRICS"`
	StoragePath   string `env:"STORAGE_PATH"`
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Load reads PAYMENTS_* variables from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom reads PAYMENTS_* variables from environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := utils.ValidatePercentage(c.IncentivePercentage); err != nil {
		return fmt.Errorf("config: incentive: %w", err)
	}
	return nil
}
