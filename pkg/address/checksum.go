package address

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ParseError reports a malformed address. It is distinct from a policy
// rejection: a malformed destination is a validation failure, not a denial.
type ParseError struct {
	Address string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed address %q: %s", e.Address, e.Reason)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Normalize validates addr and returns its canonical lowercase form.
// Mixed-case input must carry a valid EIP-55 checksum; all-lowercase and
// all-uppercase input is accepted without checksum verification.
func Normalize(addr string) (string, error) {
	if len(addr) != 42 || (addr[:2] != "0x" && addr[:2] != "0X") {
		return "", &ParseError{Address: addr, Reason: "want 0x-prefixed 40 hex characters"}
	}
	body := addr[2:]
	if !isHex(body) {
		return "", &ParseError{Address: addr, Reason: "non-hex characters"}
	}

	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if checksum(lower) != body {
			return "", &ParseError{Address: addr, Reason: "EIP-55 checksum mismatch"}
		}
	}
	return "0x" + lower, nil
}

// Checksummed returns the EIP-55 display form of addr.
func Checksummed(addr string) (string, error) {
	canonical, err := Normalize(addr)
	if err != nil {
		return "", err
	}
	return "0x" + checksum(canonical[2:]), nil
}

// checksum computes the EIP-55 mixed-case form of a lowercase hex body:
// a letter is uppercased when the corresponding nibble of the keccak256
// hash of the lowercase body is >= 8.
func checksum(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	sum := h.Sum(nil)

	out := []byte(lowerHex)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}
