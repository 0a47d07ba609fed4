package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationKind identifies the class of wallet operation being gated.
type OperationKind string

const (
	OpTransfer OperationKind = "transfer"
	OpSwap     OperationKind = "swap"
)

// Operation describes a single outbound wallet operation presented to the
// policy gate. The request layer builds one Operation per tool call, with a
// fresh correlation ID, before asking for authorization.
type Operation struct {
	CorrelationID string          `json:"correlation_id"`
	Kind          OperationKind   `json:"kind"`
	Token         string          `json:"token"`
	Destination   string          `json:"destination"`
	Amount        decimal.Decimal `json:"amount"`

	// HighRisk marks operations subject to the narrower high-risk rate
	// category (e.g. swaps, or transfers above a caller-defined threshold).
	HighRisk bool `json:"high_risk,omitempty"`

	// Batch operations are checked against BatchTotal instead of Amount
	// for the per-operation cap.
	Batch          bool            `json:"batch,omitempty"`
	BatchTotal     decimal.Decimal `json:"batch_total,omitempty"`
	RecipientCount int             `json:"recipient_count,omitempty"`

	// Arguments carries the raw tool-call arguments for audit redaction.
	Arguments map[string]any `json:"arguments,omitempty"`
}

// EffectiveAmount returns the amount the per-operation cap applies to:
// the batch total for batch operations, the single amount otherwise.
func (o Operation) EffectiveAmount() decimal.Decimal {
	if o.Batch && o.BatchTotal.IsPositive() {
		return o.BatchTotal
	}
	return o.Amount
}

// OperationOutcome reports a confirmed external execution back to the gate
// for commit-time accounting.
type OperationOutcome struct {
	Operation   Operation
	ExternalRef string
	Duration    time.Duration
	Cost        decimal.Decimal
}
