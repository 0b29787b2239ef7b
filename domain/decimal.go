package domain

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// decimals18 is the fixed fractional-digit count every wire amount in
// this system is denominated in.
const decimals18 = 18

// DecimalFromWeiHex converts a hex-encoded (0x-prefixed or bare) uint256
// wei-style wire value into an 18-fractional-digit decimal string,
// without any floating-point rounding.
func DecimalFromWeiHex(hexValue string) (string, error) {
	// uint256.FromHex rejects leading zero digits, but eth_call results
	// arrive as zero-padded 32-byte words.
	trimmed := strings.TrimLeft(strings.TrimPrefix(hexValue, "0x"), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	value, err := uint256.FromHex("0x" + trimmed)
	if err != nil {
		return "", fmt.Errorf("decode uint256 hex %q: %w", hexValue, err)
	}
	return DecimalFromUint256(value), nil
}

// DecimalFromUint256 renders a uint256 wei-style value as an
// 18-fractional-digit decimal string.
func DecimalFromUint256(value *uint256.Int) string {
	digits := value.Dec()
	return insertDecimalPoint(digits, decimals18)
}

func insertDecimalPoint(digits string, fractional int) string {
	neg := false
	if strings.HasPrefix(digits, "-") {
		neg = true
		digits = digits[1:]
	}
	for len(digits) <= fractional {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-fractional]
	fracPart := digits[len(digits)-fractional:]
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// WeiHexFromDecimal converts an 18-fractional-digit decimal string back
// into a 0x-prefixed hex uint256 wire value. Used by round-trip tests and
// any write-path-adjacent helper that must re-encode a decimal.
func WeiHexFromDecimal(decimal string) (string, error) {
	intPart, fracPart, found := strings.Cut(decimal, ".")
	if !found {
		fracPart = ""
	}
	if len(fracPart) > decimals18 {
		return "", fmt.Errorf("decimal %q exceeds %d fractional digits", decimal, decimals18)
	}
	for len(fracPart) < decimals18 {
		fracPart += "0"
	}
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		combined = "0"
	}
	value, err := uint256.FromDecimal(combined)
	if err != nil {
		return "", fmt.Errorf("encode decimal %q: %w", decimal, err)
	}
	return value.Hex(), nil
}
