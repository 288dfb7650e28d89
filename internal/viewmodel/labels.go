package viewmodel

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/glyco/internal/config"
)

// Labels names days relative to today.
type Labels struct {
	Today     string
	Yesterday string
	// Date formats any other day in a medium style.
	Date func(time.Time) string
}

// English labels: "Today", "Yesterday", "Jan 2, 2006".
var English = Labels{
	Today:     "Today",
	Yesterday: "Yesterday",
	Date:      func(t time.Time) string { return t.Format("Jan 2, 2006") },
}

// Arabic labels with Arabic month names and Arabic-Indic digits.
var Arabic = Labels{
	Today:     "اليوم",
	Yesterday: "أمس",
	Date:      arabicMediumDate,
}

var arabicMonths = [...]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

// LabelsFor returns Arabic for "ar" (and "ar-*"), English otherwise.
func LabelsFor(locale string) Labels {
	if config.IsArabic(locale) {
		return Arabic
	}
	return English
}

func arabicMediumDate(t time.Time) string {
	return fmt.Sprintf("%s %s %s", ArabicDigits(t.Day()), arabicMonths[t.Month()-1], ArabicDigits(t.Year()))
}

// ArabicDigits formats n with Arabic-Indic digits.
func ArabicDigits(n int) string {
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune('٠' + (r - '0'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DayLabel labels the calendar day containing t, relative to now, in loc.
// Yesterday means the immediately preceding calendar day, not "24 hours ago".
func DayLabel(t, now time.Time, loc *time.Location, labels Labels) string {
	day := startOfDay(t, loc)
	today := startOfDay(now, loc)
	switch {
	case day.Equal(today):
		return labels.Today
	case day.Equal(previousDay(today, loc)):
		return labels.Yesterday
	default:
		return labels.Date(day)
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func previousDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, loc)
}
