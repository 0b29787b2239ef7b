package domain

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

// eamNamespace is the actor namespace that aliases delegated ("f4")
// addresses to 20-byte EVM addresses.
const eamNamespace = 32

// delegatedPrefix is the protocol-native textual prefix for a delegated
// address in the EAM namespace.
const delegatedPrefix = "f410"

var delegatedEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NormalizeCase lowercases an EVM "0x"-prefixed address for comparison
// purposes while leaving the input's case untouched for display.
func NormalizeCase(addr string) string {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(strings.ToLower(addr), "0x") {
		return ""
	}
	return "0x" + strings.ToLower(addr[2:])
}

// IsEVMAddress reports whether addr is a syntactically valid 0x+40-hex
// EVM address.
func IsEVMAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	for _, c := range addr[2:] {
		if !isHexDigit(c) {
			return false
		}
	}
	return true
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// IsDelegatedAddress reports whether addr is a syntactically valid
// f4-delegated address in the EAM namespace.
func IsDelegatedAddress(addr string) bool {
	if !strings.HasPrefix(addr, delegatedPrefix) {
		return false
	}
	payload, err := delegatedEncoding.DecodeString(strings.ToUpper(addr[len(delegatedPrefix):]))
	if err != nil {
		return false
	}
	return len(payload) == 20
}

// NormalizeAddress accepts either an EVM (0x+40 hex) or protocol-native
// f4-delegated address and returns the canonical lowercase EVM form.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	switch {
	case IsEVMAddress(addr):
		return NormalizeCase(addr), nil
	case strings.HasPrefix(addr, "f4") || strings.HasPrefix(addr, "t4"):
		return DelegatedToEVM(addr)
	default:
		return "", fmt.Errorf("address %q is neither a valid EVM nor delegated address", addr)
	}
}

// DelegatedToEVM converts an f4-delegated address whose namespace is the
// EAM namespace (32) and whose subaddress is 20 bytes back to its
// 20-byte EVM form. Any other namespace or subaddress length is an
// error: it has no EVM-form alias.
func DelegatedToEVM(addr string) (string, error) {
	if !strings.HasPrefix(addr, delegatedPrefix) {
		return "", fmt.Errorf("address %q is not in the EAM namespace (%d)", addr, eamNamespace)
	}
	payload, err := delegatedEncoding.DecodeString(strings.ToUpper(addr[len(delegatedPrefix):]))
	if err != nil {
		return "", fmt.Errorf("decode delegated address %q: %w", addr, err)
	}
	if len(payload) != 20 {
		return "", fmt.Errorf("delegated address %q has subaddress length %d, want 20", addr, len(payload))
	}
	return "0x" + strings.ToLower(fmt.Sprintf("%040x", payload)), nil
}

// EVMToDelegated converts a 20-byte EVM address into its f4-delegated
// alias in the EAM namespace.
func EVMToDelegated(addr string) (string, error) {
	if !IsEVMAddress(addr) {
		return "", fmt.Errorf("address %q is not a valid EVM address", addr)
	}
	payload, err := hex.DecodeString(strings.ToLower(addr[2:]))
	if err != nil {
		return "", fmt.Errorf("decode evm address %q: %w", addr, err)
	}
	encoded := delegatedEncoding.EncodeToString(payload)
	return delegatedPrefix + strings.ToLower(encoded), nil
}
