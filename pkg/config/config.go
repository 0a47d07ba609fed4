package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/palisade-ai/palisade/pkg/address"
	"github.com/palisade-ai/palisade/pkg/audit"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
	"github.com/palisade-ai/palisade/pkg/spend"
)

// TokenCaps holds spending caps as decimal strings; empty means unlimited.
type TokenCaps struct {
	MaxPerOperation string `yaml:"max_per_operation"`
	MaxPerPeriod    string `yaml:"max_per_period"`
}

// SpendingConfig defines per-token and aggregate spending limits.
type SpendingConfig struct {
	Period    string               `yaml:"period"`
	Aggregate TokenCaps            `yaml:"aggregate"`
	Tokens    map[string]TokenCaps `yaml:"tokens"`
}

// Config holds all palisade configuration. It is read once at startup and
// treated as immutable afterwards.
type Config struct {
	Spending      SpendingConfig             `yaml:"spending"`
	RateLimits    map[string]ratelimit.Limit `yaml:"rate_limits"`
	AddressPolicy address.Config             `yaml:"address_policy"`
	Audit         audit.Config               `yaml:"audit"`
}

// Default returns a Config with conservative defaults: modest global
// quotas and an (empty) allowlist, which blocks every destination until
// one is configured.
func Default() *Config {
	return &Config{
		Spending: SpendingConfig{Period: string(spend.Daily)},
		RateLimits: map[string]ratelimit.Limit{
			"global":          {MaxRequests: 60, Window: time.Minute},
			"high_risk":       {MaxRequests: 10, Window: time.Minute},
			"per_destination": {MaxRequests: 5, Window: time.Minute},
		},
		AddressPolicy: address.Config{Mode: address.ModeAllowlist},
		Audit:         audit.Config{MaxEntries: audit.DefaultMaxEntries},
	}
}

// Load reads a YAML config file, expands environment variables and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every amount parses and every section refers to
// known modes and categories.
func (c *Config) Validate() error {
	if _, err := c.SpendLimits(); err != nil {
		return err
	}
	if _, err := c.RateLimitConfig(); err != nil {
		return err
	}
	if _, err := address.New(c.AddressPolicy); err != nil {
		return err
	}
	return nil
}

func parseAmount(section, field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("spending.%s.%s: invalid amount %q", section, field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("spending.%s.%s: negative amount %q", section, field, s)
	}
	return d, nil
}

func parseCaps(section string, tc TokenCaps) (spend.Caps, error) {
	perOp, err := parseAmount(section, "max_per_operation", tc.MaxPerOperation)
	if err != nil {
		return spend.Caps{}, err
	}
	perPeriod, err := parseAmount(section, "max_per_period", tc.MaxPerPeriod)
	if err != nil {
		return spend.Caps{}, err
	}
	return spend.Caps{MaxPerOperation: perOp, MaxPerPeriod: perPeriod}, nil
}

// SpendLimits converts the spending section into the limiter's config,
// parsing every amount string into a decimal.
func (c *Config) SpendLimits() (spend.Config, error) {
	period := spend.Period(c.Spending.Period)
	switch period {
	case "", spend.Daily:
		period = spend.Daily
	case spend.Monthly:
	default:
		return spend.Config{}, fmt.Errorf("spending.period: unknown period %q", c.Spending.Period)
	}

	aggregate, err := parseCaps("aggregate", c.Spending.Aggregate)
	if err != nil {
		return spend.Config{}, err
	}

	tokens := make(map[string]spend.Caps, len(c.Spending.Tokens))
	for token, tc := range c.Spending.Tokens {
		caps, err := parseCaps("tokens."+token, tc)
		if err != nil {
			return spend.Config{}, err
		}
		tokens[token] = caps
	}
	return spend.Config{Period: period, Aggregate: aggregate, Tokens: tokens}, nil
}

// RateLimitConfig converts the rate_limits section, rejecting unknown
// category names.
func (c *Config) RateLimitConfig() (ratelimit.Config, error) {
	out := make(ratelimit.Config, len(c.RateLimits))
	for name, limit := range c.RateLimits {
		category := ratelimit.Category(name)
		switch category {
		case ratelimit.CategoryGlobal, ratelimit.CategoryHighRisk, ratelimit.CategoryDestination:
		default:
			return nil, fmt.Errorf("rate_limits: unknown category %q", name)
		}
		out[category] = limit
	}
	return out, nil
}
