package gate

import (
	"errors"
	"fmt"
	"time"

	"github.com/palisade-ai/palisade/pkg/address"
	"github.com/palisade-ai/palisade/pkg/ratelimit"
	"github.com/palisade-ai/palisade/pkg/spend"
)

// Error codes surfaced to callers.
const (
	CodeLimitExceeded     = "limit_exceeded"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeAddressRejected   = "address_rejected"
	CodeMalformedInput    = "malformed_input"
	CodeInternalError     = "internal_error"
)

// ErrorPayload is the structured rejection shape surfaced to the request
// layer. Recoverable is true only for rate-limit rejections, which become
// valid again after RetryAfter.
type ErrorPayload struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Recoverable bool           `json:"recoverable"`
	RetryAfter  time.Duration  `json:"retry_after,omitempty"`
}

// MalformedInputError reports unparseable caller input other than
// addresses (which carry their own address.ParseError).
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Field, e.Reason)
}

// PayloadFor maps an authorization failure onto the boundary error shape.
// Unrecognized errors are classified as internal engine faults.
func PayloadFor(err error) ErrorPayload {
	var limitErr *spend.LimitError
	if errors.As(err, &limitErr) {
		details := map[string]any{
			"dimension": limitErr.Dimension,
			"limit":     limitErr.Limit.String(),
			"attempted": limitErr.Attempted.String(),
			"remaining": limitErr.Remaining.String(),
		}
		if limitErr.Token != "" {
			details["token"] = limitErr.Token
		}
		return ErrorPayload{
			Code:    CodeLimitExceeded,
			Message: limitErr.Error(),
			Details: details,
		}
	}

	var rateErr *ratelimit.ExceededError
	if errors.As(err, &rateErr) {
		return ErrorPayload{
			Code:    CodeRateLimitExceeded,
			Message: rateErr.Error(),
			Details: map[string]any{
				"category": string(rateErr.Category),
				"limit":    rateErr.Limit,
				"window":   rateErr.Window.String(),
				"reset_at": rateErr.ResetAt,
			},
			Recoverable: true,
			RetryAfter:  rateErr.RetryAfter,
		}
	}

	var rejErr *address.RejectedError
	if errors.As(err, &rejErr) {
		return ErrorPayload{
			Code:    CodeAddressRejected,
			Message: rejErr.Error(),
			Details: map[string]any{
				"address": rejErr.Address,
				"reason":  rejErr.Reason,
			},
		}
	}

	var parseErr *address.ParseError
	if errors.As(err, &parseErr) {
		return ErrorPayload{
			Code:    CodeMalformedInput,
			Message: parseErr.Error(),
			Details: map[string]any{"address": parseErr.Address},
		}
	}

	var inputErr *MalformedInputError
	if errors.As(err, &inputErr) {
		return ErrorPayload{
			Code:    CodeMalformedInput,
			Message: inputErr.Error(),
			Details: map[string]any{"field": inputErr.Field},
		}
	}

	return ErrorPayload{
		Code:    CodeInternalError,
		Message: err.Error(),
	}
}
