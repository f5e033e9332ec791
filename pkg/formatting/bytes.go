// Package formatting parses and renders values that appear in configuration,
// logs, and assistant replies: byte sizes and JSON embedded in free text.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// units are base-1024 multiples. int64 tops out inside EB.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above 1, using precision decimal places (at least 0).
func FormatBytes(n int64, precision int) string {
	size := float64(n)
	unit := 0
	for math.Abs(size) >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	if unit == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return strconv.FormatFloat(size, 'f', max(precision, 0), 64) + " " + units[unit]
}

// ParseBytes reads sizes such as "512", "1.5KB", "2 mb", or "8MiB". A bare
// number is a byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})

	number, suffix := s, ""
	if split >= 0 {
		number, suffix = s[:split], strings.TrimSpace(s[split:])
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	suffix = strings.Replace(strings.ToUpper(suffix), "IB", "B", 1)
	if suffix == "" {
		suffix = "B"
	}

	for i, u := range units {
		if u == suffix {
			return int64(value * math.Pow(1024, float64(i))), nil
		}
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", suffix)
}
