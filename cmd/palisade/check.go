package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/palisade-ai/palisade/pkg/ratelimit"
)

func newCheckCmd() *cobra.Command {
	var (
		configPath string
		token      string
		to         string
		amountStr  string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run a candidate operation against a fresh gate (no quota consumed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" || to == "" || amountStr == "" {
				return fmt.Errorf("--token, --to and --amount are required")
			}
			amount, err := decimal.NewFromString(amountStr)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amountStr, err)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			g, auditLog, err := buildGate(cfg)
			if err != nil {
				return err
			}
			defer auditLog.Close()

			decision, derr := g.PreviewAddress(to)
			switch {
			case derr != nil:
				fmt.Printf("Address:  MALFORMED (%v)\n", derr)
			case decision.Allowed:
				fmt.Println("Address:  allowed")
			default:
				fmt.Printf("Address:  DENIED (%s)\n", decision.Reason)
			}

			remaining := g.PreviewSpending(token)
			switch {
			case remaining.TokenLimited && amount.GreaterThan(remaining.Token):
				fmt.Printf("Spending: WOULD EXCEED %s period cap (remaining %s)\n", token, remaining.Token)
			case remaining.AggregateLimited && amount.GreaterThan(remaining.Aggregate):
				fmt.Printf("Spending: WOULD EXCEED aggregate period cap (remaining %s)\n", remaining.Aggregate)
			default:
				fmt.Println("Spending: ok")
			}

			global := g.PreviewRate(ratelimit.CategoryGlobal, "")
			if global.Remaining < 0 {
				fmt.Println("Rate:     global unlimited")
			} else {
				fmt.Printf("Rate:     global %d remaining\n", global.Remaining)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to palisade config file")
	cmd.Flags().StringVar(&token, "token", "", "token symbol")
	cmd.Flags().StringVar(&to, "to", "", "destination address")
	cmd.Flags().StringVar(&amountStr, "amount", "", "decimal amount")
	return cmd
}
