package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/palisade-ai/palisade/pkg/config"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
)

func newLimitsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Print the configured policy: spending caps, rate limits, address mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Print(formatPolicy(cfg))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to palisade config file")
	return cmd
}

func orUnlimited(s string) string {
	if s == "" {
		return "unlimited"
	}
	return s
}

func formatPolicy(cfg *config.Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Spending (period: %s)\n", cfg.Spending.Period)
	fmt.Fprintf(&b, "  %-12s %-16s %s\n", "TOKEN", "PER-OPERATION", "PER-PERIOD")
	fmt.Fprintf(&b, "  %-12s %-16s %s\n", "aggregate",
		orUnlimited(cfg.Spending.Aggregate.MaxPerOperation),
		orUnlimited(cfg.Spending.Aggregate.MaxPerPeriod))

	tokens := make([]string, 0, len(cfg.Spending.Tokens))
	for token := range cfg.Spending.Tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		caps := cfg.Spending.Tokens[token]
		fmt.Fprintf(&b, "  %-12s %-16s %s\n", token,
			orUnlimited(caps.MaxPerOperation), orUnlimited(caps.MaxPerPeriod))
	}

	fmt.Fprintf(&b, "\nRate limits\n")
	categories := make([]string, 0, len(cfg.RateLimits))
	for name := range cfg.RateLimits {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for _, name := range categories {
		limit := cfg.RateLimits[name]
		if limit == (ratelimit.Limit{}) {
			fmt.Fprintf(&b, "  %-16s unlimited\n", name)
			continue
		}
		fmt.Fprintf(&b, "  %-16s %d requests / %s\n", name, limit.MaxRequests, limit.Window)
	}

	fmt.Fprintf(&b, "\nAddress policy: %s (%d entries)\n",
		cfg.AddressPolicy.Mode, len(cfg.AddressPolicy.Addresses))

	if cfg.Audit.DBPath != "" {
		fmt.Fprintf(&b, "Audit: %d entries retained at %s\n", cfg.Audit.MaxEntries, cfg.Audit.DBPath)
	} else {
		fmt.Fprintf(&b, "Audit: %d entries retained in memory\n", cfg.Audit.MaxEntries)
	}
	return b.String()
}
