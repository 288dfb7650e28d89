package intake

import (
	"fmt"
	"strconv"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/errors"
)

// ParseVoiceUnits accepts transcribed speech such as "5", "5 units" or
// "٥ وحدات". The text must contain exactly one run of digits forming a
// positive integer; anything else is a VALIDATION error.
func ParseVoiceUnits(text string) (int, error) {
	runes := []rune(normalizeDigits(text))
	var runs []string
	negative := false
	for i := 0; i < len(runes); {
		if runes[i] < '0' || runes[i] > '9' {
			i++
			continue
		}
		start := i
		for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
			i++
		}
		if start > 0 && runes[start-1] == '-' {
			negative = true
		}
		runs = append(runs, string(runes[start:i]))
	}

	if len(runs) != 1 || negative {
		return 0, errors.NewValidation(text, "say a single positive number of units")
	}
	units, err := strconv.Atoi(runs[0])
	if err != nil || units <= 0 {
		return 0, errors.NewValidation(text, "say a single positive number of units")
	}
	return units, nil
}

// Confirmation is the spoken reply after a dose is recorded.
func Confirmation(units int, locale string) string {
	if config.IsArabic(locale) {
		return fmt.Sprintf("تم تسجيل %d وحدات إنسولين بنجاح", units)
	}
	if units == 1 {
		return "Recorded 1 unit of insulin"
	}
	return fmt.Sprintf("Recorded %d units of insulin", units)
}
