package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palisade-ai/palisade/pkg/address"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
	"github.com/palisade-ai/palisade/pkg/spend"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "palisade.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Spending.Period != "daily" {
		t.Errorf("period = %s, want daily", cfg.Spending.Period)
	}
	if cfg.AddressPolicy.Mode != address.ModeAllowlist {
		t.Errorf("mode = %s, want allowlist", cfg.AddressPolicy.Mode)
	}
	if got := cfg.RateLimits["global"]; got.MaxRequests != 60 || got.Window != time.Minute {
		t.Errorf("global limit = %+v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
spending:
  period: daily
  aggregate:
    max_per_period: "5000"
  tokens:
    USDC:
      max_per_operation: "500"
      max_per_period: "1000"
    ETH:
      max_per_operation: "0.5"

rate_limits:
  global:
    max_requests: 30
    window: 30s
  per_destination:
    max_requests: 3
    window: 5m

address_policy:
  mode: denylist
  addresses:
    - address: "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
      reason: known scam

audit:
  max_entries: 500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	limits, err := cfg.SpendLimits()
	if err != nil {
		t.Fatalf("SpendLimits: %v", err)
	}
	if limits.Period != spend.Daily {
		t.Errorf("period = %s", limits.Period)
	}
	if !limits.Aggregate.MaxPerPeriod.Equal(dec("5000")) {
		t.Errorf("aggregate cap = %s", limits.Aggregate.MaxPerPeriod)
	}
	usdc := limits.Tokens["USDC"]
	if !usdc.MaxPerOperation.Equal(dec("500")) || !usdc.MaxPerPeriod.Equal(dec("1000")) {
		t.Errorf("USDC caps = %+v", usdc)
	}
	if !limits.Tokens["ETH"].MaxPerOperation.Equal(dec("0.5")) {
		t.Errorf("ETH cap = %s", limits.Tokens["ETH"].MaxPerOperation)
	}

	rates, err := cfg.RateLimitConfig()
	if err != nil {
		t.Fatalf("RateLimitConfig: %v", err)
	}
	if got := rates[ratelimit.CategoryGlobal]; got.MaxRequests != 30 || got.Window != 30*time.Second {
		t.Errorf("global = %+v", got)
	}
	if got := rates[ratelimit.CategoryDestination]; got.MaxRequests != 3 || got.Window != 5*time.Minute {
		t.Errorf("per_destination = %+v", got)
	}
	// high_risk keeps its default when the file does not override it
	if got := rates[ratelimit.CategoryHighRisk]; got.MaxRequests != 10 {
		t.Errorf("high_risk = %+v, want default", got)
	}

	if cfg.AddressPolicy.Mode != address.ModeDenylist {
		t.Errorf("mode = %s", cfg.AddressPolicy.Mode)
	}
	if cfg.Audit.MaxEntries != 500 {
		t.Errorf("audit max_entries = %d", cfg.Audit.MaxEntries)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("PALISADE_AUDIT_DB", "/tmp/palisade-audit.db")
	path := writeConfig(t, `
audit:
  db_path: ${PALISADE_AUDIT_DB}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audit.DBPath != "/tmp/palisade-audit.db" {
		t.Errorf("db_path = %s", cfg.Audit.DBPath)
	}
}

func TestLoadRejectsInvalidAmount(t *testing.T) {
	path := writeConfig(t, `
spending:
  tokens:
    USDC:
      max_per_period: "lots"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}

func TestLoadRejectsNegativeAmount(t *testing.T) {
	path := writeConfig(t, `
spending:
  aggregate:
    max_per_operation: "-5"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestLoadRejectsUnknownRateCategory(t *testing.T) {
	path := writeConfig(t, `
rate_limits:
  per_token:
    max_requests: 5
    window: 1m
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown rate category")
	}
}

func TestLoadRejectsUnknownPeriod(t *testing.T) {
	path := writeConfig(t, `
spending:
  period: weekly
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestLoadRejectsMalformedPolicyEntry(t *testing.T) {
	path := writeConfig(t, `
address_policy:
  mode: allowlist
  addresses:
    - address: "0xnope"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed policy address")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
