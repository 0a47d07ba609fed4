package spend

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Period is the accounting window over which spending accumulates.
type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
)

// Limit dimensions reported by LimitError.
const (
	DimPerOperation    = "per-operation"
	DimTokenPeriod     = "token-period"
	DimAggregatePeriod = "aggregate-period"
)

// Caps holds the spending caps for one token, or for the aggregate across
// all tokens. A zero cap means unlimited on that dimension.
type Caps struct {
	MaxPerOperation decimal.Decimal
	MaxPerPeriod    decimal.Decimal
}

// Config defines spending limits per token plus an aggregate ceiling.
type Config struct {
	Period    Period
	Aggregate Caps
	Tokens    map[string]Caps
}

// LimitError reports the first violated spending dimension.
type LimitError struct {
	Dimension string
	Token     string
	Limit     decimal.Decimal
	Attempted decimal.Decimal
	Remaining decimal.Decimal
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("spending limit exceeded (%s): attempted %s, limit %s, remaining %s",
		e.Dimension, e.Attempted, e.Limit, e.Remaining)
}

// Remaining is a read-only view of the current period's headroom.
// Unlimited dimensions report Limited=false with a zero value.
type Remaining struct {
	Token            decimal.Decimal
	TokenLimited     bool
	Aggregate        decimal.Decimal
	AggregateLimited bool
}

// window tracks spending for one token (or the aggregate) within the
// current accounting period. Guarded by its own mutex so different tokens
// never block each other.
type window struct {
	mu        sync.Mutex
	caps      Caps
	periodKey string
	spent     decimal.Decimal
}

// Limiter enforces per-token and aggregate spending caps. Windows are
// created lazily on first reference and live for the process lifetime.
type Limiter struct {
	cfg       Config
	now       func() time.Time
	aggregate *window

	mu     sync.RWMutex
	tokens map[string]*window
}

// New creates a Limiter from the given config.
func New(cfg Config) *Limiter {
	if cfg.Period == "" {
		cfg.Period = Daily
	}
	return &Limiter{
		cfg:       cfg,
		now:       time.Now,
		aggregate: &window{caps: cfg.Aggregate, spent: decimal.Zero},
		tokens:    make(map[string]*window),
	}
}

func (l *Limiter) periodKey(now time.Time) string {
	now = now.UTC()
	if l.cfg.Period == Monthly {
		return now.Format("2006-01")
	}
	return now.Format("2006-01-02")
}

func (l *Limiter) tokenWindow(token string) *window {
	l.mu.RLock()
	w := l.tokens[token]
	l.mu.RUnlock()
	if w != nil {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w = l.tokens[token]; w == nil {
		w = &window{caps: l.cfg.Tokens[token], spent: decimal.Zero}
		l.tokens[token] = w
	}
	return w
}

// rollover resets the window if the accounting period has advanced.
// Caller must hold w.mu.
func (l *Limiter) rollover(w *window) {
	key := l.periodKey(l.now())
	if w.periodKey != key {
		w.periodKey = key
		w.spent = decimal.Zero
	}
}

// Validate checks amount against, in order: the per-operation caps (token
// then aggregate), the token's period cap, and the aggregate period cap.
// The first violated dimension is reported and the remaining checks are
// skipped. Validate never mutates spending totals.
func (l *Limiter) Validate(token string, amount decimal.Decimal) error {
	tw := l.tokenWindow(token)

	if limit := tw.caps.MaxPerOperation; limit.IsPositive() && amount.GreaterThan(limit) {
		return &LimitError{
			Dimension: DimPerOperation,
			Token:     token,
			Limit:     limit,
			Attempted: amount,
			Remaining: limit,
		}
	}
	if limit := l.aggregate.caps.MaxPerOperation; limit.IsPositive() && amount.GreaterThan(limit) {
		return &LimitError{
			Dimension: DimPerOperation,
			Limit:     limit,
			Attempted: amount,
			Remaining: limit,
		}
	}

	tw.mu.Lock()
	l.rollover(tw)
	if limit := tw.caps.MaxPerPeriod; limit.IsPositive() {
		if attempted := tw.spent.Add(amount); attempted.GreaterThan(limit) {
			err := &LimitError{
				Dimension: DimTokenPeriod,
				Token:     token,
				Limit:     limit,
				Attempted: attempted,
				Remaining: limit.Sub(tw.spent),
			}
			tw.mu.Unlock()
			return err
		}
	}
	tw.mu.Unlock()

	l.aggregate.mu.Lock()
	defer l.aggregate.mu.Unlock()
	l.rollover(l.aggregate)
	if limit := l.aggregate.caps.MaxPerPeriod; limit.IsPositive() {
		if attempted := l.aggregate.spent.Add(amount); attempted.GreaterThan(limit) {
			return &LimitError{
				Dimension: DimAggregatePeriod,
				Limit:     limit,
				Attempted: attempted,
				Remaining: limit.Sub(l.aggregate.spent),
			}
		}
	}
	return nil
}

// Record adds amount to the token's period total and the aggregate total.
// Call only after the underlying operation is confirmed to have executed;
// speculative recording would skew accounting relative to real exposure.
func (l *Limiter) Record(token string, amount decimal.Decimal) {
	tw := l.tokenWindow(token)

	tw.mu.Lock()
	l.rollover(tw)
	tw.spent = tw.spent.Add(amount)
	tw.mu.Unlock()

	l.aggregate.mu.Lock()
	l.rollover(l.aggregate)
	l.aggregate.spent = l.aggregate.spent.Add(amount)
	l.aggregate.mu.Unlock()
}

// Remaining reports current-period headroom for a token and the aggregate,
// applying period rollover first.
func (l *Limiter) Remaining(token string) Remaining {
	var r Remaining
	tw := l.tokenWindow(token)

	tw.mu.Lock()
	l.rollover(tw)
	if limit := tw.caps.MaxPerPeriod; limit.IsPositive() {
		r.TokenLimited = true
		r.Token = limit.Sub(tw.spent)
		if r.Token.IsNegative() {
			r.Token = decimal.Zero
		}
	}
	tw.mu.Unlock()

	l.aggregate.mu.Lock()
	l.rollover(l.aggregate)
	if limit := l.aggregate.caps.MaxPerPeriod; limit.IsPositive() {
		r.AggregateLimited = true
		r.Aggregate = limit.Sub(l.aggregate.spent)
		if r.Aggregate.IsNegative() {
			r.Aggregate = decimal.Zero
		}
	}
	l.aggregate.mu.Unlock()
	return r
}
