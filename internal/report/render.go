package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/healthsource"
)

// Display units for glucose values.
const (
	UnitMgdl = "mg/dL"
	UnitMmol = "mmol/L"
)

// text holds the localized report strings.
type text struct {
	lang        string
	dir         string
	title       string
	issued      string
	total       string
	valueHeader string
	dateHeader  string
	noData      string
	page        string
	dateLayout  string
	timeLayout  string
	units       map[string]string
}

var arabicText = text{
	lang:        "ar",
	dir:         "rtl",
	title:       "تقرير مستوى السكر",
	issued:      "تاريخ الإصدار",
	total:       "إجمالي القراءات",
	valueHeader: "القيمة",
	dateHeader:  "التاريخ والوقت",
	noData:      "لا توجد بيانات مسجلة",
	page:        "صفحة",
	dateLayout:  "2006/01/02",
	timeLayout:  "2006/01/02 15:04",
	units:       map[string]string{UnitMgdl: "ملجم/دسل", UnitMmol: "ملمول/لتر"},
}

var englishText = text{
	lang:        "en",
	dir:         "rtl",
	title:       "Glucose Report",
	issued:      "Issued",
	total:       "Total readings",
	valueHeader: "Value",
	dateHeader:  "Date and time",
	noData:      "No data recorded",
	page:        "Page",
	dateLayout:  "Jan 2, 2006",
	timeLayout:  "Jan 2, 2006 15:04",
	units:       map[string]string{UnitMgdl: UnitMgdl, UnitMmol: UnitMmol},
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// NormalizeUnit returns UnitMmol for "mmol/L" or "mmol" in any case, else UnitMgdl.
func NormalizeUnit(unit string) string {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mmol/l", "mmol":
		return UnitMmol
	}
	return UnitMgdl
}

// FormatValue formats a mg/dL value in the display unit.
func FormatValue(mgdl float64, unit string) string {
	if NormalizeUnit(unit) == UnitMmol {
		return fmt.Sprintf("%.1f", mgdl/healthsource.MmolToMgdl)
	}
	return fmt.Sprintf("%.0f", mgdl)
}

// Markdown renders one page as Markdown: header, then a value/date table or
// the no-data placeholder.
func Markdown(doc Document, page Page, locale, unit string, loc *time.Location) string {
	t := textFor(locale)
	unit = NormalizeUnit(unit)
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.title)
	fmt.Fprintf(&b, "%s: %s\n\n", t.issued, doc.GeneratedAt.In(loc).Format(t.dateLayout))
	fmt.Fprintf(&b, "%s: %d\n\n", t.total, doc.Count)

	if len(page.Rows) == 0 {
		fmt.Fprintf(&b, "*%s*\n", t.noData)
		return b.String()
	}

	fmt.Fprintf(&b, "| %s (%s) | %s |\n", t.valueHeader, t.units[unit], t.dateHeader)
	b.WriteString("| ---: | ---: |\n")
	for _, r := range page.Rows {
		fmt.Fprintf(&b, "| %s | %s |\n", FormatValue(r.Value, unit), r.Date.In(loc).Format(t.timeLayout))
	}
	if len(doc.Pages) > 1 {
		fmt.Fprintf(&b, "\n%s %d / %d\n", t.page, page.Number, len(doc.Pages))
	}
	return b.String()
}

// RenderHTML renders every page into one right-to-left HTML document with a
// page break between pages.
func RenderHTML(doc Document, locale, unit string, loc *time.Location) ([]byte, error) {
	t := textFor(locale)

	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html lang=%q dir=%q>\n<head>\n<meta charset=\"utf-8\">\n", t.lang, t.dir)
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(t.title))
	out.WriteString("<style>\n" + pageCSS + "</style>\n</head>\n<body>\n")

	for i, page := range doc.Pages {
		if i > 0 {
			out.WriteString("<div class=\"page-break\"></div>\n")
		}
		fmt.Fprintf(&out, "<section class=\"page\" data-page=\"%d\">\n", page.Number)
		if err := md.Convert([]byte(Markdown(doc, page, locale, unit, loc)), &out); err != nil {
			return nil, fmt.Errorf("render page %d: %w", page.Number, err)
		}
		out.WriteString("</section>\n")
	}
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func textFor(locale string) text {
	if config.IsArabic(locale) {
		return arabicText
	}
	return englishText
}

const pageCSS = `@page { size: letter; margin: 24px; }
body { font-family: -apple-system, "Segoe UI", "Noto Naskh Arabic", sans-serif; text-align: right; }
.page { width: 612px; }
.page-break { page-break-after: always; break-after: page; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 6px 0; border-bottom: 1px solid #ddd; font-variant-numeric: tabular-nums; }
em { display: block; text-align: center; color: #888; padding-top: 40px; }
`
