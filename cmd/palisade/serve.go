package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/palisade-ai/palisade/pkg/address"
	"github.com/palisade-ai/palisade/pkg/audit"
	"github.com/palisade-ai/palisade/pkg/chain"
	"github.com/palisade-ai/palisade/pkg/config"
	"github.com/palisade-ai/palisade/pkg/gate"
	"github.com/palisade-ai/palisade/pkg/mcp"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
	"github.com/palisade-ai/palisade/pkg/spend"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gated wallet tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			g, auditLog, err := buildGate(cfg)
			if err != nil {
				return err
			}
			defer auditLog.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcp.New(g, chain.NewSimExecutor(), version)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to palisade config file")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildGate constructs the four policy engines from config and composes
// them behind a Gate.
func buildGate(cfg *config.Config) (*gate.Gate, *audit.Log, error) {
	spendCfg, err := cfg.SpendLimits()
	if err != nil {
		return nil, nil, err
	}
	rateCfg, err := cfg.RateLimitConfig()
	if err != nil {
		return nil, nil, err
	}
	policy, err := address.New(cfg.AddressPolicy)
	if err != nil {
		return nil, nil, err
	}
	auditLog, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}

	g := gate.New(spend.New(spendCfg), ratelimit.New(rateCfg), policy, auditLog)
	return g, auditLog, nil
}
