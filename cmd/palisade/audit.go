package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/palisade-ai/palisade/pkg/audit"
	"github.com/palisade-ai/palisade/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query a persisted audit trail",
	}

	cmd.AddCommand(
		newAuditRecentCmd(),
		newAuditTraceCmd(),
	)
	return cmd
}

func newAuditRecentCmd() *cobra.Command {
	var (
		configPath string
		count      int
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := l.Recent(count)
			if err != nil {
				return err
			}
			fmt.Print(formatAuditRecords(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to palisade config file")
	cmd.Flags().IntVar(&count, "count", 50, "max records to show")
	return cmd
}

func newAuditTraceCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "trace <correlation-id>",
		Short: "Show the full history of one operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := l.ByCorrelationID(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No records found for that correlation id.")
				return nil
			}
			fmt.Print(formatAuditRecords(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to palisade config file")
	return cmd
}

func openAuditLog(configPath string) (*audit.Log, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Audit.DBPath == "" {
		return nil, nil, fmt.Errorf("audit.db_path is not configured; an in-memory trail is only queryable from the running process")
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatAuditRecords(records []models.AuditRecord) string {
	if len(records) == 0 {
		return "No audit records found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-10s %-17s %s\n",
		"CORRELATION ID", "TIME", "OPERATION", "OUTCOME", "DETAIL")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, r := range records {
		detail := r.RejectionReason
		if detail == "" {
			detail = r.ErrorDetail
		}
		if detail == "" && r.ExternalRef != "" {
			detail = "tx " + r.ExternalRef
		}
		fmt.Fprintf(&b, "%-38s %-20s %-10s %-17s %s\n",
			r.CorrelationID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Operation,
			r.Outcome,
			detail)
	}
	return b.String()
}
