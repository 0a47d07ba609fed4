// Package chain is the boundary to the transaction-submission layer. The
// gate treats an Executor as an operation that may succeed, fail, or never
// confirm; how a transaction is built, signed or retried lives behind it.
package chain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/palisade-ai/palisade/pkg/models"
)

// Receipt reports a confirmed external execution.
type Receipt struct {
	TxHash   string
	Duration time.Duration
}

// Executor submits one wallet operation to an external system.
type Executor interface {
	Name() string
	Execute(ctx context.Context, op models.Operation) (*Receipt, error)
}

// SimExecutor is a deterministic in-process executor used by the CLI demo
// and tests. Destinations listed in FailFor produce an execution failure
// after authorization, which exercises the execution-failed audit path.
type SimExecutor struct {
	Latency time.Duration
	FailFor map[string]error
}

// NewSimExecutor creates a SimExecutor with no induced failures.
func NewSimExecutor() *SimExecutor {
	return &SimExecutor{FailFor: make(map[string]error)}
}

// Name identifies the executor in audit output.
func (s *SimExecutor) Name() string { return "sim" }

// Execute pretends to submit op and returns a synthetic transaction hash.
func (s *SimExecutor) Execute(ctx context.Context, op models.Operation) (*Receipt, error) {
	start := time.Now()
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := s.FailFor[op.Destination]; ok {
		return nil, fmt.Errorf("execute %s: %w", op.Kind, err)
	}

	b := make([]byte, 32)
	rand.Read(b)
	return &Receipt{
		TxHash:   "0x" + hex.EncodeToString(b),
		Duration: time.Since(start),
	}, nil
}
