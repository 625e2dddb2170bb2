package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// pow10 holds powers of ten up to the maximum supported precision.
var pow10 = [19]int64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000,
	1_000_000_000, 10_000_000_000, 100_000_000_000, 1_000_000_000_000,
	10_000_000_000_000, 100_000_000_000_000, 1_000_000_000_000_000,
	10_000_000_000_000_000, 100_000_000_000_000_000, 1_000_000_000_000_000_000,
}

// FormatAmount renders a base-unit amount as a decimal string with the
// given precision, trimming trailing fractional zeros. No floats are
// involved, so the result is exact.
func FormatAmount(v int64, decimals int) string {
	if decimals <= 0 {
		return strconv.FormatInt(v, 10)
	}
	neg := v < 0
	if neg {
		v = -v
	}
	p := pow10[decimals]
	whole := v / p
	frac := v % p

	s := strconv.FormatInt(whole, 10)
	if frac != 0 {
		fs := fmt.Sprintf("%0*d", decimals, frac)
		fs = strings.TrimRight(fs, "0")
		s += "." + fs
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ParseAmount parses a non-negative decimal string into base units at
// the given precision. More fractional digits than the precision
// allows, signs, and empty input are rejected.
func ParseAmount(s string, decimals int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "amount", Reason: "empty"}
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, &ValidationError{Field: "amount", Reason: "signed value " + s}
	}
	if decimals < 0 || decimals >= len(pow10) {
		return 0, &ValidationError{Field: "decimals", Reason: "out of range"}
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, &ValidationError{Field: "amount", Reason: "malformed value " + s}
	}
	if len(frac) > decimals {
		return 0, &ValidationError{Field: "amount", Reason: "too many decimal places in " + s}
	}
	if whole == "" {
		whole = "0"
	}

	// Right-pad the fraction to the full precision and parse the
	// concatenation as one integer; ParseInt reports overflow for us.
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, &ValidationError{Field: "amount", Reason: "malformed value " + s}
		}
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "value out of range: " + s}
	}
	return v, nil
}
