package mcp

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/palisade-ai/palisade/pkg/address"
	"github.com/palisade-ai/palisade/pkg/models"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
	"github.com/palisade-ai/palisade/pkg/spend"
)

func formatReceipt(op models.Operation, txHash string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s confirmed\n", op.Kind)
	fmt.Fprintf(&b, "Correlation ID: %s\n", op.CorrelationID)
	fmt.Fprintf(&b, "Token:          %s\n", op.Token)
	fmt.Fprintf(&b, "Destination:    %s\n", op.Destination)
	if op.Batch {
		fmt.Fprintf(&b, "Batch total:    %s (%d recipients)\n", op.BatchTotal, op.RecipientCount)
	} else {
		fmt.Fprintf(&b, "Amount:         %s\n", op.Amount)
	}
	fmt.Fprintf(&b, "Tx:             %s\n", txHash)
	return b.String()
}

func formatRemaining(r spend.Remaining) (token, aggregate string) {
	token, aggregate = "unlimited", "unlimited"
	if r.TokenLimited {
		token = r.Token.String()
	}
	if r.AggregateLimited {
		aggregate = r.Aggregate.String()
	}
	return token, aggregate
}

func formatRate(r ratelimit.Result) string {
	if r.Remaining < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d remaining (resets %s)", r.Remaining, r.ResetAt.Format("15:04:05"))
}

func formatLimits(token string, remaining spend.Remaining, global, highRisk ratelimit.Result) string {
	var b strings.Builder
	if token != "" {
		tok, agg := formatRemaining(remaining)
		fmt.Fprintf(&b, "Spending remaining this period:\n")
		fmt.Fprintf(&b, "  %-10s %s\n", token+":", tok)
		fmt.Fprintf(&b, "  %-10s %s\n", "aggregate:", agg)
	} else {
		_, agg := formatRemaining(remaining)
		fmt.Fprintf(&b, "Aggregate spending remaining this period: %s\n", agg)
	}
	fmt.Fprintf(&b, "Rate quota:\n")
	fmt.Fprintf(&b, "  global:    %s\n", formatRate(global))
	fmt.Fprintf(&b, "  high-risk: %s\n", formatRate(highRisk))
	return b.String()
}

func formatCheck(args checkArgs, amount decimal.Decimal, decision address.Decision, derr error,
	remaining spend.Remaining, global, highRisk ratelimit.Result, isHighRisk bool) string {

	var b strings.Builder
	fmt.Fprintf(&b, "Advisory check for %s %s -> %s\n\n", amount, args.Token, args.To)

	switch {
	case derr != nil:
		fmt.Fprintf(&b, "Address:  MALFORMED (%v)\n", derr)
	case decision.Allowed:
		fmt.Fprintf(&b, "Address:  allowed\n")
	default:
		fmt.Fprintf(&b, "Address:  DENIED (%s)\n", decision.Reason)
	}

	if remaining.TokenLimited && amount.GreaterThan(remaining.Token) {
		fmt.Fprintf(&b, "Spending: WOULD EXCEED token cap (remaining %s)\n", remaining.Token)
	} else if remaining.AggregateLimited && amount.GreaterThan(remaining.Aggregate) {
		fmt.Fprintf(&b, "Spending: WOULD EXCEED aggregate cap (remaining %s)\n", remaining.Aggregate)
	} else {
		tok, agg := formatRemaining(remaining)
		fmt.Fprintf(&b, "Spending: ok (token remaining %s, aggregate remaining %s)\n", tok, agg)
	}

	fmt.Fprintf(&b, "Rate:     global %s\n", formatRate(global))
	if isHighRisk {
		fmt.Fprintf(&b, "          high-risk %s\n", formatRate(highRisk))
	}
	fmt.Fprintf(&b, "\nNo quota was consumed by this check.\n")
	return b.String()
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
