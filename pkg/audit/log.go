// Package audit maintains the append-only trail of gated operations.
package audit

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palisade-ai/palisade/pkg/models"
)

// Config controls the audit subsystem. With an empty DBPath the trail is
// held in memory only and does not survive the process.
type Config struct {
	MaxEntries int      `yaml:"max_entries"`
	DBPath     string   `yaml:"db_path"`
	RedactKeys []string `yaml:"redact_keys"`
}

// defaultRedactKeys are argument keys scrubbed from every record when no
// explicit list is configured.
var defaultRedactKeys = []string{"private_key", "secret", "mnemonic", "seed", "api_key"}

// Store is the persistence backend for audit records.
type Store interface {
	Append(rec models.AuditRecord) error
	Recent(n int) ([]models.AuditRecord, error)
	ByCorrelationID(id string) ([]models.AuditRecord, error)
	Close() error
}

// Log assigns timestamps, redacts arguments and appends records to a Store.
// Append failures are reported through the side-channel logger only; they
// never abort the governed operation.
type Log struct {
	store  Store
	redact map[string]bool
	now    func() time.Time
}

// New opens a Log backed by SQLite when cfg.DBPath is set, in memory
// otherwise.
func New(cfg Config) (*Log, error) {
	var store Store
	if cfg.DBPath != "" {
		s, err := NewSQLiteStore(cfg.DBPath, cfg.MaxEntries)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = NewMemoryStore(cfg.MaxEntries)
	}
	return NewWithStore(store, cfg.RedactKeys), nil
}

// NewWithStore wraps an existing Store.
func NewWithStore(store Store, redactKeys []string) *Log {
	if len(redactKeys) == 0 {
		redactKeys = defaultRedactKeys
	}
	redact := make(map[string]bool, len(redactKeys))
	for _, k := range redactKeys {
		redact[k] = true
	}
	return &Log{store: store, redact: redact, now: time.Now}
}

// Append timestamps rec and hands it to the store. The timestamp is
// assigned here, at append time, so records reflect true completion order
// under concurrency.
func (l *Log) Append(rec models.AuditRecord) {
	rec.Timestamp = l.now().UTC()
	rec.Arguments = l.redactArgs(rec.Arguments)
	if err := l.store.Append(rec); err != nil {
		log.Warn().Err(err).
			Str("correlation_id", rec.CorrelationID).
			Str("outcome", string(rec.Outcome)).
			Msg("audit append failed")
	}
}

// Accepted records a committed operation.
func (l *Log) Accepted(op models.Operation, externalRef string, duration time.Duration, cost string) {
	l.Append(models.AuditRecord{
		CorrelationID: op.CorrelationID,
		Operation:     string(op.Kind),
		Arguments:     op.Arguments,
		Outcome:       models.OutcomeAccepted,
		DurationMs:    duration.Milliseconds(),
		ExternalRef:   externalRef,
		Cost:          cost,
	})
}

// Rejected records an operation blocked before execution.
func (l *Log) Rejected(op models.Operation, reason string) {
	l.Append(models.AuditRecord{
		CorrelationID:   op.CorrelationID,
		Operation:       string(op.Kind),
		Arguments:       op.Arguments,
		Outcome:         models.OutcomeRejected,
		RejectionReason: reason,
	})
}

// ExecutionFailed records an operation that was authorized but failed
// externally.
func (l *Log) ExecutionFailed(op models.Operation, errDetail string, duration time.Duration) {
	l.Append(models.AuditRecord{
		CorrelationID: op.CorrelationID,
		Operation:     string(op.Kind),
		Arguments:     op.Arguments,
		Outcome:       models.OutcomeExecutionFailed,
		ErrorDetail:   errDetail,
		DurationMs:    duration.Milliseconds(),
	})
}

// Recent returns up to n records, most recent first.
func (l *Log) Recent(n int) ([]models.AuditRecord, error) {
	return l.store.Recent(n)
}

// ByCorrelationID returns all records for one logical operation in the
// order they were appended.
func (l *Log) ByCorrelationID(id string) ([]models.AuditRecord, error) {
	return l.store.ByCorrelationID(id)
}

// Close releases the underlying store.
func (l *Log) Close() error {
	return l.store.Close()
}

func (l *Log) redactArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if l.redact[k] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = v
	}
	return out
}
