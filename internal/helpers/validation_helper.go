package helpers

import (
	"strings"
)

// ZeroAddress is the null identity. It is never a valid recipient, agent,
// or owner.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// IsAddressValid checks if the provided string is a valid Ethereum address
// It verifies:
// 1. The address is exactly 42 characters long (including 0x prefix)
// 2. The address starts with "0x"
// 3. The remaining 40 characters are valid hexadecimal
func IsAddressValid(address string) bool {
	// Check length
	if len(address) != 42 {
		return false
	}

	// Check "0x" prefix
	if !strings.HasPrefix(address, "0x") {
		return false
	}

	// Check if the address contains only hex characters after the 0x prefix
	for _, c := range address[2:] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}

	return true
}

// IsIdentityUsable reports whether the address is well formed and not the
// null identity.
func IsIdentityUsable(address string) bool {
	return IsAddressValid(address) && !strings.EqualFold(address, ZeroAddress)
}

// NormalizeAddress lowercases an address so map keys and comparisons are
// case-insensitive across checksummed and plain forms.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}
