// Package format renders values for display.
package format

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Placeholder is shown for values that cannot be formatted.
const Placeholder = "-"

var units = []string{"KB", "MB", "GB"}

// FormatBytes renders a byte count as "512 B", "2 KB", "1.5 MB", ...
func FormatBytes(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Placeholder
	}
	if n < 1024 {
		return strconv.FormatFloat(n, 'f', -1, 64) + " B"
	}

	value := n / 1024
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}

	digits := 1
	if value >= 10 {
		digits = 0
	}
	fixed := toFixed(value, digits)
	fixed = strings.TrimSuffix(fixed, ".0")
	return fixed + " " + units[unit]
}

// toFixed rounds the exact binary value of v to the nearest multiple of
// 10^-digits, ties going up, for non-negative v.
func toFixed(v float64, digits int) string {
	scaled := new(big.Float).SetPrec(256).SetFloat64(v)
	scaled.Mul(scaled, new(big.Float).SetPrec(256).SetInt64(pow10(digits)))
	scaled.Add(scaled, big.NewFloat(0.5))

	n, _ := scaled.Int(nil) // truncates toward zero, i.e. floor for v >= 0
	s := n.String()
	if digits == 0 {
		return s
	}
	for len(s) <= digits {
		s = "0" + s
	}
	return s[:len(s)-digits] + "." + s[len(s)-digits:]
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
