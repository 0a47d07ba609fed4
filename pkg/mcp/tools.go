package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/palisade-ai/palisade/pkg/address"
	"github.com/palisade-ai/palisade/pkg/gate"
	"github.com/palisade-ai/palisade/pkg/models"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
)

// Tool argument structs.

type recipientArg struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transferArgs struct {
	Token      string         `json:"token"`
	To         string         `json:"to"`
	Amount     string         `json:"amount"`
	HighRisk   bool           `json:"high_risk"`
	Recipients []recipientArg `json:"recipients"`
}

type swapArgs struct {
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	Amount   string `json:"amount"`
	Venue    string `json:"venue"`
}

type checkArgs struct {
	Token    string `json:"token"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	HighRisk bool   `json:"high_risk"`
}

type recentArgs struct {
	Count int `json:"count"`
}

type traceArgs struct {
	CorrelationID string `json:"correlation_id"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"wallet_transfer":    handleTransfer,
	"wallet_swap":        handleSwap,
	"guard_check":        handleCheck,
	"guard_limits":       handleLimits,
	"guard_audit_recent": handleAuditRecent,
	"guard_audit_trace":  handleAuditTrace,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "wallet_transfer",
		Description: "Transfer tokens to a destination address, subject to spending, rate and address policy.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"token"},
			"properties": map[string]any{
				"token":     map[string]any{"type": "string", "description": "Token symbol, e.g. ETH or USDC"},
				"to":        map[string]any{"type": "string", "description": "Destination address (single transfer)"},
				"amount":    map[string]any{"type": "string", "description": "Decimal amount (single transfer)"},
				"high_risk": map[string]any{"type": "boolean", "description": "Subject this call to the high-risk rate category"},
				"recipients": map[string]any{
					"type":        "array",
					"description": "Batch mode: list of {to, amount} pairs, checked against the batch total",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"to":     map[string]any{"type": "string"},
							"amount": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	},
	{
		Name:        "wallet_swap",
		Description: "Swap tokens at a venue. Always classified high-risk.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"token_in", "token_out", "amount", "venue"},
			"properties": map[string]any{
				"token_in":  map[string]any{"type": "string", "description": "Token to sell"},
				"token_out": map[string]any{"type": "string", "description": "Token to buy"},
				"amount":    map[string]any{"type": "string", "description": "Decimal amount of token_in"},
				"venue":     map[string]any{"type": "string", "description": "Venue / router contract address"},
			},
		},
	},
	{
		Name:        "guard_check",
		Description: "Advisory dry-run of an operation: reports policy decisions without consuming quota or executing anything.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"token", "to", "amount"},
			"properties": map[string]any{
				"token":     map[string]any{"type": "string"},
				"to":        map[string]any{"type": "string"},
				"amount":    map[string]any{"type": "string"},
				"high_risk": map[string]any{"type": "boolean"},
			},
		},
	},
	{
		Name:        "guard_limits",
		Description: "Show remaining spending allowance and rate quota for a token.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"token": map[string]any{"type": "string", "description": "Token symbol (optional)"},
			},
		},
	},
	{
		Name:        "guard_audit_recent",
		Description: "Show the most recent audit records.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"count": map[string]any{"type": "integer", "description": "Max records to return (default 20)"},
			},
		},
	},
	{
		Name:        "guard_audit_trace",
		Description: "Show the full causal history of one operation by correlation id.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"correlation_id"},
			"properties": map[string]any{
				"correlation_id": map[string]any{"type": "string"},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

// rejectionResult renders a structured gate rejection as a tool error.
func rejectionResult(err error) ToolCallResult {
	payload := gate.PayloadFor(err)
	b, merr := json.MarshalIndent(payload, "", "  ")
	if merr != nil {
		return errorResult(payload.Message)
	}
	return errorResult(string(b))
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &gate.MalformedInputError{Field: field, Reason: fmt.Sprintf("invalid decimal %q", s)}
	}
	if !d.IsPositive() {
		return decimal.Zero, &gate.MalformedInputError{Field: field, Reason: "amount must be positive"}
	}
	return d, nil
}

// execute runs the authorized operation and reports its outcome back to
// the gate: Commit on confirmed success, ExecutionFailed otherwise.
func execute(ctx context.Context, s *Server, op models.Operation) ToolCallResult {
	start := time.Now()
	receipt, err := s.executor.Execute(ctx, op)
	if err != nil {
		s.gate.ExecutionFailed(op, err, time.Since(start))
		return errorResult(fmt.Sprintf("execution failed (correlation id %s): %v", op.CorrelationID, err))
	}

	if err := s.gate.Commit(models.OperationOutcome{
		Operation:   op,
		ExternalRef: receipt.TxHash,
		Duration:    receipt.Duration,
		Cost:        op.EffectiveAmount(),
	}); err != nil {
		return errorResult(fmt.Sprintf("commit failed: %v", err))
	}
	return textResult(formatReceipt(op, receipt.TxHash))
}

func handleTransfer(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args transferArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Token == "" {
		return errorResult("token is required")
	}

	var argMap map[string]any
	_ = json.Unmarshal(rawArgs, &argMap)

	op := models.Operation{
		CorrelationID: uuid.NewString(),
		Kind:          models.OpTransfer,
		Token:         args.Token,
		HighRisk:      args.HighRisk,
		Arguments:     argMap,
	}

	if len(args.Recipients) > 0 {
		total := decimal.Zero
		for i, r := range args.Recipients {
			amount, err := parseAmount(fmt.Sprintf("recipients[%d].amount", i), r.Amount)
			if err != nil {
				return rejectionResult(s.gate.Reject(op, err))
			}
			total = total.Add(amount)

			// Every batch recipient must pass the address policy, not
			// just the one carried as the operation's destination.
			d, derr := s.gate.PreviewAddress(r.To)
			if derr != nil {
				return rejectionResult(s.gate.Reject(op, derr))
			}
			if !d.Allowed {
				return rejectionResult(s.gate.Reject(op, &address.RejectedError{Address: r.To, Reason: d.Reason}))
			}
		}
		op.Destination = args.Recipients[0].To
		op.Batch = true
		op.BatchTotal = total
		op.RecipientCount = len(args.Recipients)
	} else {
		if args.To == "" || args.Amount == "" {
			return errorResult("to and amount are required for a single transfer")
		}
		amount, err := parseAmount("amount", args.Amount)
		if err != nil {
			return rejectionResult(s.gate.Reject(op, err))
		}
		op.Destination = args.To
		op.Amount = amount
	}

	if err := s.gate.Authorize(op); err != nil {
		return rejectionResult(err)
	}
	return execute(ctx, s, op)
}

func handleSwap(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args swapArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.TokenIn == "" || args.TokenOut == "" || args.Amount == "" || args.Venue == "" {
		return errorResult("token_in, token_out, amount and venue are required")
	}

	var argMap map[string]any
	_ = json.Unmarshal(rawArgs, &argMap)

	op := models.Operation{
		CorrelationID: uuid.NewString(),
		Kind:          models.OpSwap,
		Token:         args.TokenIn,
		Destination:   args.Venue,
		HighRisk:      true,
		Arguments:     argMap,
	}

	amount, err := parseAmount("amount", args.Amount)
	if err != nil {
		return rejectionResult(s.gate.Reject(op, err))
	}
	op.Amount = amount

	if err := s.gate.Authorize(op); err != nil {
		return rejectionResult(err)
	}
	return execute(ctx, s, op)
}

func handleCheck(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args checkArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Token == "" || args.To == "" || args.Amount == "" {
		return errorResult("token, to and amount are required")
	}

	amount, err := decimal.NewFromString(args.Amount)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid amount %q", args.Amount))
	}

	decision, derr := s.gate.PreviewAddress(args.To)
	remaining := s.gate.PreviewSpending(args.Token)
	global := s.gate.PreviewRate(ratelimit.CategoryGlobal, "")
	highRisk := s.gate.PreviewRate(ratelimit.CategoryHighRisk, "")

	return textResult(formatCheck(args, amount, decision, derr, remaining, global, highRisk, args.HighRisk))
}

func handleLimits(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args checkArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	remaining := s.gate.PreviewSpending(args.Token)
	global := s.gate.PreviewRate(ratelimit.CategoryGlobal, "")
	highRisk := s.gate.PreviewRate(ratelimit.CategoryHighRisk, "")

	return textResult(formatLimits(args.Token, remaining, global, highRisk))
}

func handleAuditRecent(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args recentArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	count := args.Count
	if count <= 0 {
		count = 20
	}

	records, err := s.gate.Recent(count)
	if err != nil {
		return errorResult("Error fetching audit records: " + err.Error())
	}
	return textResult(formatAuditRecords(records))
}

func handleAuditTrace(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args traceArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.CorrelationID == "" {
		return errorResult("correlation_id is required")
	}

	records, err := s.gate.ByCorrelationID(args.CorrelationID)
	if err != nil {
		return errorResult("Error fetching audit records: " + err.Error())
	}
	if len(records) == 0 {
		return textResult("No records found for that correlation id.")
	}
	return textResult(formatAuditRecords(records))
}
