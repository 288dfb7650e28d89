// Package report builds the glucose report: a paginated value/date table
// rendered to a right-to-left HTML document and written atomically to disk.
package report

import (
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/glyco/internal/record"
)

// DefaultRowsPerPage is used when Options.RowsPerPage is not positive.
const DefaultRowsPerPage = 25

// Row is one glucose reading in mg/dL.
type Row struct {
	Value float64   `json:"value"`
	Date  time.Time `json:"date"`
}

// Page is one page of the report table. An empty page is the
// "no data recorded" placeholder.
type Page struct {
	Number int   `json:"number"`
	Rows   []Row `json:"rows"`
}

// Document is a built report, ready to render.
type Document struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Pages       []Page    `json:"pages"`
}

// Options controls pagination.
type Options struct {
	RowsPerPage int
}

// Build collects the glucose readings from records, newest first, and splits
// them into pages. Insulin records are ignored. With no readings the document
// has a single empty page.
func Build(records []record.Record, generatedAt time.Time, opts Options) Document {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		if g, ok := r.Glucose(); ok {
			rows = append(rows, Row{Value: g.Value, Date: r.Date})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.After(rows[j].Date)
	})

	per := opts.RowsPerPage
	if per <= 0 {
		per = DefaultRowsPerPage
	}

	doc := Document{
		ID:          ulid.Make().String(),
		GeneratedAt: generatedAt,
		Count:       len(rows),
	}
	if len(rows) == 0 {
		doc.Pages = []Page{{Number: 1, Rows: []Row{}}}
		return doc
	}
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		doc.Pages = append(doc.Pages, Page{
			Number: len(doc.Pages) + 1,
			Rows:   rows[start:end],
		})
	}
	return doc
}

// Empty reports whether the document carries no readings.
func (d Document) Empty() bool { return d.Count == 0 }
