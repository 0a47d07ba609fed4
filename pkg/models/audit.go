package models

import "time"

// AuditOutcome is the terminal classification of one audit record.
type AuditOutcome string

const (
	OutcomeAccepted        AuditOutcome = "accepted"
	OutcomeRejected        AuditOutcome = "rejected"
	OutcomeExecutionFailed AuditOutcome = "execution_failed"
)

// AuditRecord is a single immutable entry in the operation audit trail.
// Records sharing a CorrelationID form the full causal history of one
// logical operation, retrievable together in append order.
type AuditRecord struct {
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Operation     string         `json:"operation"`
	Arguments     map[string]any `json:"arguments,omitempty"`
	Outcome       AuditOutcome   `json:"outcome"`

	RejectionReason string `json:"rejection_reason,omitempty"`
	ErrorDetail     string `json:"error_detail,omitempty"`
	DurationMs      int64  `json:"duration_ms,omitempty"`
	ExternalRef     string `json:"external_ref,omitempty"`
	Cost            string `json:"cost,omitempty"`
}
