package spend

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() Config {
	return Config{
		Period: Daily,
		Aggregate: Caps{
			MaxPerOperation: dec("5000"),
			MaxPerPeriod:    dec("8000"),
		},
		Tokens: map[string]Caps{
			"ETH":  {MaxPerOperation: dec("2"), MaxPerPeriod: dec("10")},
			"USDC": {MaxPerOperation: dec("1000"), MaxPerPeriod: dec("1000")},
		},
	}
}

func fixedClock(l *Limiter, t time.Time) {
	l.now = func() time.Time { return t }
}

func TestValidateWithinLimits(t *testing.T) {
	l := New(testConfig())
	if err := l.Validate("ETH", dec("1.5")); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidatePerOperationCap(t *testing.T) {
	l := New(testConfig())
	err := l.Validate("ETH", dec("2.5"))

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Dimension != DimPerOperation {
		t.Errorf("dimension = %s, want %s", limitErr.Dimension, DimPerOperation)
	}
	if !limitErr.Limit.Equal(dec("2")) {
		t.Errorf("limit = %s, want 2", limitErr.Limit)
	}
}

func TestValidateTokenPeriodCap(t *testing.T) {
	// Cap 1000/day with 950 already spent: a 100 transfer must fail with
	// attempted=1050 and remaining=50.
	l := New(testConfig())
	l.Record("USDC", dec("950"))

	err := l.Validate("USDC", dec("100"))
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Dimension != DimTokenPeriod {
		t.Errorf("dimension = %s, want %s", limitErr.Dimension, DimTokenPeriod)
	}
	if !limitErr.Limit.Equal(dec("1000")) {
		t.Errorf("limit = %s, want 1000", limitErr.Limit)
	}
	if !limitErr.Attempted.Equal(dec("1050")) {
		t.Errorf("attempted = %s, want 1050", limitErr.Attempted)
	}
	if !limitErr.Remaining.Equal(dec("50")) {
		t.Errorf("remaining = %s, want 50", limitErr.Remaining)
	}
}

func TestValidateAggregatePeriodCap(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens["DAI"] = Caps{} // unlimited per token
	l := New(cfg)

	l.Record("DAI", dec("7500"))
	err := l.Validate("DAI", dec("600"))

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Dimension != DimAggregatePeriod {
		t.Errorf("dimension = %s, want %s", limitErr.Dimension, DimAggregatePeriod)
	}
	if !limitErr.Remaining.Equal(dec("500")) {
		t.Errorf("remaining = %s, want 500", limitErr.Remaining)
	}
}

func TestFirstViolatedDimensionWins(t *testing.T) {
	// An amount over both the per-operation and the period cap reports
	// per-operation: later checks are skipped.
	l := New(testConfig())
	l.Record("USDC", dec("999"))

	err := l.Validate("USDC", dec("1001"))
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Dimension != DimPerOperation {
		t.Errorf("dimension = %s, want %s", limitErr.Dimension, DimPerOperation)
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	l := New(testConfig())
	for i := 0; i < 5; i++ {
		if err := l.Validate("ETH", dec("2")); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}
	r := l.Remaining("ETH")
	if !r.Token.Equal(dec("10")) {
		t.Errorf("remaining = %s, want 10 (validate must not consume)", r.Token)
	}
}

func TestUnknownTokenOnlyAggregateApplies(t *testing.T) {
	l := New(testConfig())
	if err := l.Validate("PEPE", dec("4000")); err != nil {
		t.Errorf("unknown token under aggregate cap: %v", err)
	}
	err := l.Validate("PEPE", dec("5500"))
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Dimension != DimPerOperation {
		t.Errorf("dimension = %s, want %s (aggregate per-operation)", limitErr.Dimension, DimPerOperation)
	}
}

func TestPeriodRollover(t *testing.T) {
	l := New(testConfig())
	day1 := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	fixedClock(l, day1)

	l.Record("ETH", dec("9.5"))
	if err := l.Validate("ETH", dec("1")); err == nil {
		t.Fatal("expected token-period failure before rollover")
	}

	// Crossing the UTC day boundary resets the window before any check.
	fixedClock(l, day1.Add(time.Hour))
	if err := l.Validate("ETH", dec("1")); err != nil {
		t.Errorf("expected fresh window after rollover, got %v", err)
	}
	r := l.Remaining("ETH")
	if !r.Token.Equal(dec("10")) {
		t.Errorf("remaining after rollover = %s, want 10", r.Token)
	}
}

func TestMonthlyPeriodKey(t *testing.T) {
	cfg := testConfig()
	cfg.Period = Monthly
	l := New(cfg)

	inMonth := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fixedClock(l, inMonth)
	l.Record("ETH", dec("9"))

	fixedClock(l, inMonth.AddDate(0, 0, 27))
	r := l.Remaining("ETH")
	if !r.Token.Equal(dec("1")) {
		t.Errorf("remaining within month = %s, want 1", r.Token)
	}

	fixedClock(l, inMonth.AddDate(0, 1, 0))
	r = l.Remaining("ETH")
	if !r.Token.Equal(dec("10")) {
		t.Errorf("remaining after month rollover = %s, want 10", r.Token)
	}
}

func TestRemainingUnlimited(t *testing.T) {
	l := New(Config{})
	r := l.Remaining("ETH")
	if r.TokenLimited || r.AggregateLimited {
		t.Errorf("expected unlimited dimensions, got %+v", r)
	}
}

func TestRecordAccumulatesDecimalExactly(t *testing.T) {
	// Many small operations must not drift: 0.1 added ten times is
	// exactly 1, not 0.9999999999.
	l := New(testConfig())
	for i := 0; i < 10; i++ {
		l.Record("ETH", dec("0.1"))
	}
	r := l.Remaining("ETH")
	if !r.Token.Equal(dec("9")) {
		t.Errorf("remaining = %s, want exactly 9", r.Token)
	}
}

func TestConcurrentRecordDifferentTokens(t *testing.T) {
	cfg := Config{
		Period: Daily,
		Tokens: map[string]Caps{
			"A": {MaxPerPeriod: dec("100000")},
			"B": {MaxPerPeriod: dec("100000")},
		},
	}
	l := New(cfg)

	var wg sync.WaitGroup
	for _, token := range []string{"A", "B"} {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(tok string) {
				defer wg.Done()
				l.Record(tok, dec("1"))
			}(token)
		}
	}
	wg.Wait()

	for _, token := range []string{"A", "B"} {
		r := l.Remaining(token)
		if !r.Token.Equal(dec("99950")) {
			t.Errorf("token %s remaining = %s, want 99950", token, r.Token)
		}
	}
}
