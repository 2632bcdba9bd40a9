// Package wallet handles Ethereum wallet addresses used as writer identities.
package wallet

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Address is an EIP-55 checksummed Ethereum address ("0x" + 40 hex digits).
type Address string

// Parse validates s as an Ethereum address and returns its EIP-55
// checksummed form. Input case is ignored.
func Parse(s string) (Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("invalid address %q: missing 0x prefix", s)
	}
	hexPart := strings.ToLower(s[2:])
	if len(hexPart) != 40 {
		return "", fmt.Errorf("invalid address %q: want 40 hex digits, got %d", s, len(hexPart))
	}
	for _, c := range hexPart {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("invalid address %q: non-hex digit %q", s, c)
		}
	}
	return Address("0x" + checksum(hexPart)), nil
}

// checksum applies the EIP-55 mixed-case checksum to a lowercase 40-digit
// hex string (without the 0x prefix).
func checksum(hexPart string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexPart))
	sum := h.Sum(nil)

	out := []byte(hexPart)
	for i := range out {
		if out[i] < 'a' || out[i] > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = out[i] - 'a' + 'A'
		}
	}
	return string(out)
}

// String returns the address as a string.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return a == ""
}

// Equal compares two addresses ignoring checksum casing.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}
