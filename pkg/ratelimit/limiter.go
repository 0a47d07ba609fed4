package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Category names a class of rate-limited operation.
type Category string

const (
	// CategoryGlobal covers every gated operation in the process.
	CategoryGlobal Category = "global"
	// CategoryHighRisk covers operations flagged high-risk.
	CategoryHighRisk Category = "high_risk"
	// CategoryDestination is keyed by normalized destination address.
	CategoryDestination Category = "per_destination"
)

// Limit defines the fixed-window quota for one category.
// Zero values mean no limit for that category.
type Limit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

func (l Limit) enabled() bool {
	return l.MaxRequests > 0 && l.Window > 0
}

// Config maps categories to their limits.
type Config map[Category]Limit

// Result is a non-mutating view of a bucket's availability.
// Remaining is -1 when the category has no configured limit.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// ExceededError is the structured, retryable failure raised by Validate.
type ExceededError struct {
	Category   Category
	Key        string
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d requests in %s window, retry after %s",
		e.Category, e.Limit, e.Window, e.RetryAfter)
}

// bucket is a fixed-window counter for one (category, key) pair.
// Guarded by its own mutex so different keys never block each other.
type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// Limiter tracks request counts per (category, key) against fixed windows.
// Buckets are created lazily on first reference and live for the process
// lifetime. Fixed-window semantics admit bursts up to 2x capacity across a
// window boundary; acceptable for this quota's purpose.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New creates a Limiter from the given config.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func bucketKey(category Category, key string) string {
	return string(category) + "|" + key
}

func (l *Limiter) bucket(category Category, key string) *bucket {
	bk := bucketKey(category, key)

	l.mu.RLock()
	b := l.buckets[bk]
	l.mu.RUnlock()
	if b != nil {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b = l.buckets[bk]; b == nil {
		b = &bucket{}
		l.buckets[bk] = b
	}
	return b
}

// roll resets the bucket once the window has expired, advancing the window
// start to the boundary at or before now. Caller must hold b.mu.
func roll(b *bucket, window time.Duration, now time.Time) {
	if now.Sub(b.windowStart) >= window {
		b.windowStart = now.Truncate(window)
		b.count = 0
	}
}

// Check previews availability without consuming quota. Calling it any
// number of times yields the same result, all else equal.
func (l *Limiter) Check(category Category, key string) Result {
	limit, ok := l.cfg[category]
	if !ok || !limit.enabled() {
		return Result{Allowed: true, Remaining: -1}
	}

	b := l.bucket(category, key)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	roll(b, limit.Window, now)

	remaining := limit.MaxRequests - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   b.count < limit.MaxRequests,
		Remaining: remaining,
		ResetAt:   b.windowStart.Add(limit.Window),
	}
}

// Validate performs the same evaluation as Check but raises a structured
// failure carrying the retry horizon.
func (l *Limiter) Validate(category Category, key string) error {
	r := l.Check(category, key)
	if r.Allowed {
		return nil
	}

	limit := l.cfg[category]
	retryAfter := r.ResetAt.Sub(l.now())
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &ExceededError{
		Category:   category,
		Key:        key,
		Limit:      limit.MaxRequests,
		Window:     limit.Window,
		RetryAfter: retryAfter,
		ResetAt:    r.ResetAt,
	}
}

// RecordRequest consumes one unit of quota. Invoked only when the governed
// operation is actually accepted, so previews never consume quota.
func (l *Limiter) RecordRequest(category Category, key string) {
	limit, ok := l.cfg[category]
	if !ok || !limit.enabled() {
		return
	}

	b := l.bucket(category, key)
	b.mu.Lock()
	defer b.mu.Unlock()

	roll(b, limit.Window, l.now())
	b.count++
}
