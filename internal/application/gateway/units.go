// internal/application/gateway/units.go
package gateway

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits converts a raw integer ledger amount into a decimal string
// using the given precision, trimming trailing zeros ("1500000000000000000"
// with 18 decimals becomes "1.5").
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}
	if decimals <= 0 {
		return v.String()
	}

	s := new(big.Int).Abs(v).String()
	neg := v.Sign() < 0

	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	cut := len(s) - decimals
	whole, frac := s[:cut], s[cut:]
	frac = strings.TrimRight(frac, "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseUnits converts a decimal string into raw integer ledger units.
// More fractional digits than the ledger precision is an error, not a
// silent truncation.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("gateway: amount is empty")
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("gateway: amount %q has more than %d decimal places", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("gateway: invalid amount %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

// TrimDecimals truncates the fractional part of a decimal string to at most
// places digits. Display-only helper; it does not round.
func TrimDecimals(s string, places int) string {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return s
	}
	frac := s[i+1:]
	if len(frac) <= places {
		return s
	}
	frac = strings.TrimRight(frac[:places], "0")
	if frac == "" {
		return s[:i]
	}
	return s[:i+1] + frac
}
