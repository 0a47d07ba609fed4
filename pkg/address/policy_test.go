package address

import (
	"errors"
	"strings"
	"testing"
)

// Checksummed forms from the EIP-55 reference vectors.
var checksummedVectors = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestNormalizeLowercase(t *testing.T) {
	got, err := Normalize("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed" {
		t.Errorf("canonical = %s", got)
	}
}

func TestNormalizeValidChecksum(t *testing.T) {
	for _, addr := range checksummedVectors {
		got, err := Normalize(addr)
		if err != nil {
			t.Errorf("%s: %v", addr, err)
			continue
		}
		if got != strings.ToLower(addr) {
			t.Errorf("%s: canonical = %s", addr, got)
		}
	}
}

func TestNormalizeChecksumMismatch(t *testing.T) {
	// Flip the case of the first letter of a valid checksummed address.
	bad := "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	_, err := Normalize(bad)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Reason != "EIP-55 checksum mismatch" {
		t.Errorf("reason = %q", parseErr.Reason)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	cases := []string{
		"",
		"0x",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beae",    // 39 hex chars
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaedf",  // 41 hex chars
		"5aaeb6053f3e94c9b9a09f33669435e7ef1beaed0x",   // no prefix
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaeg",   // non-hex
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea ed",  // whitespace
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed\n", // trailing newline
	}
	for _, addr := range cases {
		if _, err := Normalize(addr); err == nil {
			t.Errorf("Normalize(%q): expected error", addr)
		}
	}
}

func TestChecksummedRoundTrip(t *testing.T) {
	for _, addr := range checksummedVectors {
		got, err := Checksummed(strings.ToLower(addr))
		if err != nil {
			t.Fatalf("%s: %v", addr, err)
		}
		if got != addr {
			t.Errorf("Checksummed(%s) = %s, want %s", strings.ToLower(addr), got, addr)
		}
	}
}

func TestAllowlistPolicy(t *testing.T) {
	p, err := New(Config{
		Mode: ModeAllowlist,
		Addresses: []Entry{
			{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Reason: "treasury"},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Listed address matches in any accepted casing.
	for _, addr := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED",
	} {
		d, err := p.Check(addr)
		if err != nil {
			t.Fatalf("Check(%s): %v", addr, err)
		}
		if !d.Allowed {
			t.Errorf("Check(%s): denied, want allowed", addr)
		}
	}

	d, err := p.Check("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Error("unlisted address allowed under allowlist mode")
	}
	if d.Reason != "address not on allow list" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestDenylistCaseInsensitive(t *testing.T) {
	// An uppercase entry must block the lowercase form of the same address.
	p, err := New(Config{
		Mode: ModeDenylist,
		Addresses: []Entry{
			{Address: "0xFB6916095CA1DF60BB79CE92CE3EA74C37C5D359", Reason: "known scam"},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, err := p.Check("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Fatal("deny-listed address allowed")
	}
	if d.Reason != "known scam" {
		t.Errorf("reason = %q, want configured reason", d.Reason)
	}

	d, err = p.Check("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allowed {
		t.Error("unlisted address denied under denylist mode")
	}
}

func TestDenylistDefaultReason(t *testing.T) {
	p, err := New(Config{
		Mode:      ModeDenylist,
		Addresses: []Entry{{Address: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d, _ := p.Check("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if d.Reason != "address is deny-listed" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestDisabledMode(t *testing.T) {
	p, err := New(Config{Mode: ModeDisabled})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Disabled mode allows without even parsing the address.
	d, err := p.Check("not-an-address")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allowed {
		t.Error("disabled mode denied")
	}
}

func TestDefaultModeIsAllowlist(t *testing.T) {
	p, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Mode() != ModeAllowlist {
		t.Errorf("mode = %s, want %s", p.Mode(), ModeAllowlist)
	}
	if err := p.Validate("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"); err == nil {
		t.Error("empty allowlist must deny everything")
	}
}

func TestNewRejectsMalformedEntry(t *testing.T) {
	_, err := New(Config{
		Mode:      ModeDenylist,
		Addresses: []Entry{{Address: "0xBAD"}},
	})
	if err == nil {
		t.Fatal("expected error for malformed policy entry")
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(Config{Mode: "blocklist"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestValidateErrorTypes(t *testing.T) {
	p, err := New(Config{Mode: ModeAllowlist})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var parseErr *ParseError
	if err := p.Validate("0xzz"); !errors.As(err, &parseErr) {
		t.Errorf("malformed address: got %v, want ParseError", err)
	}

	var rejected *RejectedError
	if err := p.Validate("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"); !errors.As(err, &rejected) {
		t.Errorf("denied address: got %v, want RejectedError", err)
	}
}
