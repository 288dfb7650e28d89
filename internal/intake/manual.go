// Package intake turns raw user input (typed text, recognized image text,
// transcribed speech) into dose units or glucose values.
package intake

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/hpungsan/glyco/internal/errors"
)

// ParseUnits parses a manually typed dose: a positive whole number.
func ParseUnits(text string) (int, error) {
	s := normalizeDigits(strings.TrimSpace(text))
	units, err := strconv.Atoi(s)
	if err != nil || units <= 0 {
		return 0, errors.NewValidation(text, "enter a positive whole number of units")
	}
	return units, nil
}

// ParseGlucose parses a manually typed glucose value: a positive number.
// Both "." and the Arabic decimal separator are accepted.
func ParseGlucose(text string) (float64, error) {
	s := normalizeDigits(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "٫", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.NewValidation(text, "enter a positive glucose value")
	}
	return v, nil
}

// DigitsOnly keeps the decimal digits of text, in any script, as ASCII.
func DigitsOnly(text string) string {
	var b strings.Builder
	for _, r := range text {
		if d, ok := digitValue(r); ok {
			b.WriteByte(byte('0' + d))
		}
	}
	return b.String()
}

// normalizeDigits rewrites every decimal digit to ASCII and leaves other runes alone.
func normalizeDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if d, ok := digitValue(r); ok {
			b.WriteByte(byte('0' + d))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// digitValue returns the numeric value of a Unicode decimal digit.
// Decimal digits are encoded in contiguous runs starting at zero.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if !unicode.IsDigit(r) {
		return 0, false
	}
	n := 0
	for unicode.IsDigit(r - rune(n) - 1) {
		n++
	}
	return n % 10, true
}
