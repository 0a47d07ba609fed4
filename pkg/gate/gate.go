// Package gate composes the four policy engines behind a single facade
// that authorizes and commits agent-issued wallet operations.
package gate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/palisade-ai/palisade/pkg/address"
	"github.com/palisade-ai/palisade/pkg/audit"
	"github.com/palisade-ai/palisade/pkg/models"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
	"github.com/palisade-ai/palisade/pkg/spend"
)

// Gate is the sole entry point used by the request layer. Per operation
// the state machine is Pending -> Authorized -> {Committed |
// ExecutionFailed}, or Pending -> Rejected; Commit refuses operations that
// were never authorized, and refuses a second commit of the same one.
type Gate struct {
	spend     *spend.Limiter
	rates     *ratelimit.Limiter
	addresses *address.Policy
	audit     *audit.Log

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New wires the four engines into a Gate.
func New(spendLimiter *spend.Limiter, rates *ratelimit.Limiter, addresses *address.Policy, auditLog *audit.Log) *Gate {
	return &Gate{
		spend:     spendLimiter,
		rates:     rates,
		addresses: addresses,
		audit:     auditLog,
		inflight:  make(map[string]struct{}),
	}
}

// destinationKey returns the per-destination rate bucket key. When the
// destination cannot be normalized (possible only with the address policy
// disabled) the lowercased raw string keeps the bucket stable.
func destinationKey(destination string) string {
	canonical, err := address.Normalize(destination)
	if err != nil {
		return strings.ToLower(destination)
	}
	return canonical
}

// Authorize runs the policy checks in fixed order, short-circuiting on the
// first failure: global rate limit, high-risk rate limit (flagged
// operations only), address policy, spending limits, per-destination rate
// limit. Cheap checks run first; a failed check leaves all later counters
// untouched. Every failure is recorded as a rejected audit entry before it
// is returned.
func (g *Gate) Authorize(op models.Operation) error {
	if err := g.rates.Validate(ratelimit.CategoryGlobal, ""); err != nil {
		return g.reject(op, err)
	}
	if op.HighRisk {
		if err := g.rates.Validate(ratelimit.CategoryHighRisk, ""); err != nil {
			return g.reject(op, err)
		}
	}
	if err := g.addresses.Validate(op.Destination); err != nil {
		return g.reject(op, err)
	}
	if err := g.spend.Validate(op.Token, op.EffectiveAmount()); err != nil {
		return g.reject(op, err)
	}
	if err := g.rates.Validate(ratelimit.CategoryDestination, destinationKey(op.Destination)); err != nil {
		return g.reject(op, err)
	}

	g.mu.Lock()
	g.inflight[op.CorrelationID] = struct{}{}
	g.mu.Unlock()
	return nil
}

func (g *Gate) reject(op models.Operation, err error) error {
	g.audit.Rejected(op, err.Error())
	return err
}

// Reject records a rejection raised by the request layer itself (for
// example a malformed amount caught before Authorize could run) so the
// audit trail still carries the operation's history.
func (g *Gate) Reject(op models.Operation, err error) error {
	return g.reject(op, err)
}

// Commit records the real-world effect of a confirmed operation: spending
// totals, then the global, high-risk and per-destination counters, then the
// accepted audit record. Quota is consumed here rather than at Authorize,
// so an operation abandoned between the two under-counts exposure instead
// of blocking future legitimate calls.
func (g *Gate) Commit(outcome models.OperationOutcome) error {
	op := outcome.Operation

	g.mu.Lock()
	_, ok := g.inflight[op.CorrelationID]
	if ok {
		delete(g.inflight, op.CorrelationID)
	}
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("commit without prior authorization (correlation id %s)", op.CorrelationID)
	}

	g.spend.Record(op.Token, op.EffectiveAmount())
	g.rates.RecordRequest(ratelimit.CategoryGlobal, "")
	if op.HighRisk {
		g.rates.RecordRequest(ratelimit.CategoryHighRisk, "")
	}
	g.rates.RecordRequest(ratelimit.CategoryDestination, destinationKey(op.Destination))

	var cost string
	if outcome.Cost.IsPositive() {
		cost = outcome.Cost.String()
	}
	g.audit.Accepted(op, outcome.ExternalRef, outcome.Duration, cost)
	return nil
}

// ExecutionFailed records an operation that was authorized but whose
// external execution failed. No counters are touched: accounting reflects
// confirmed activity only.
func (g *Gate) ExecutionFailed(op models.Operation, execErr error, duration time.Duration) {
	g.mu.Lock()
	delete(g.inflight, op.CorrelationID)
	g.mu.Unlock()

	g.audit.ExecutionFailed(op, execErr.Error(), duration)
}

// PreviewSpending reports current-period spending headroom without
// consuming quota or touching the audit trail.
func (g *Gate) PreviewSpending(token string) spend.Remaining {
	return g.spend.Remaining(token)
}

// PreviewAddress evaluates a destination without side effects.
func (g *Gate) PreviewAddress(addr string) (address.Decision, error) {
	return g.addresses.Check(addr)
}

// PreviewRate previews a rate bucket without consuming quota.
func (g *Gate) PreviewRate(category ratelimit.Category, key string) ratelimit.Result {
	return g.rates.Check(category, key)
}

// Recent returns up to n audit records, most recent first.
func (g *Gate) Recent(n int) ([]models.AuditRecord, error) {
	return g.audit.Recent(n)
}

// ByCorrelationID returns the full causal history of one operation.
func (g *Gate) ByCorrelationID(id string) ([]models.AuditRecord, error) {
	return g.audit.ByCorrelationID(id)
}
