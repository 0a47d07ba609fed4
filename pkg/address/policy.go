// Package address evaluates destination addresses against an allow/deny
// ruleset with EIP-55 canonical normalization.
package address

import (
	"fmt"
)

// Mode selects how the policy treats addresses, fixed at construction time.
type Mode string

const (
	// ModeAllowlist denies by default; an explicit allow entry is required.
	ModeAllowlist Mode = "allowlist"
	// ModeDenylist allows by default; listed addresses are blocked.
	ModeDenylist Mode = "denylist"
	// ModeDisabled always allows.
	ModeDisabled Mode = "disabled"
)

// Entry is one configured address rule.
type Entry struct {
	Address string `yaml:"address"`
	Reason  string `yaml:"reason,omitempty"`
}

// Config defines the policy mode and its rule set.
type Config struct {
	Mode      Mode    `yaml:"mode"`
	Addresses []Entry `yaml:"addresses,omitempty"`
}

// Decision is the outcome of a non-mutating policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

// RejectedError is raised by Validate when a destination is not allowed.
// Not recoverable without an out-of-band policy change.
type RejectedError struct {
	Address string
	Reason  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("destination %s rejected: %s", e.Address, e.Reason)
}

// Policy holds the normalized rule set. Immutable after construction, so
// concurrent checks need no locking.
type Policy struct {
	mode    Mode
	entries map[string]string // canonical address -> reason
}

// New builds a Policy, normalizing every configured address. A malformed
// entry is a configuration error, not a silently ignored rule.
func New(cfg Config) (*Policy, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeAllowlist
	}
	switch mode {
	case ModeAllowlist, ModeDenylist, ModeDisabled:
	default:
		return nil, fmt.Errorf("unknown address policy mode %q", cfg.Mode)
	}

	entries := make(map[string]string, len(cfg.Addresses))
	for _, e := range cfg.Addresses {
		canonical, err := Normalize(e.Address)
		if err != nil {
			return nil, fmt.Errorf("address policy entry: %w", err)
		}
		entries[canonical] = e.Reason
	}
	return &Policy{mode: mode, entries: entries}, nil
}

// Mode returns the configured policy mode.
func (p *Policy) Mode() Mode {
	return p.mode
}

// Check evaluates addr against the rule set. The returned error is non-nil
// only when addr cannot be normalized.
func (p *Policy) Check(addr string) (Decision, error) {
	if p.mode == ModeDisabled {
		return Decision{Allowed: true}, nil
	}

	canonical, err := Normalize(addr)
	if err != nil {
		return Decision{}, err
	}

	reason, listed := p.entries[canonical]
	switch p.mode {
	case ModeAllowlist:
		if !listed {
			return Decision{Reason: "address not on allow list"}, nil
		}
		return Decision{Allowed: true, Reason: reason}, nil
	default: // ModeDenylist
		if listed {
			if reason == "" {
				reason = "address is deny-listed"
			}
			return Decision{Reason: reason}, nil
		}
		return Decision{Allowed: true}, nil
	}
}

// Validate returns nil when addr is allowed, a *ParseError when addr is
// malformed, and a *RejectedError otherwise.
func (p *Policy) Validate(addr string) error {
	d, err := p.Check(addr)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &RejectedError{Address: addr, Reason: d.Reason}
	}
	return nil
}
