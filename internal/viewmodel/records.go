package viewmodel

import (
	"sort"
	"time"

	"github.com/hpungsan/glyco/internal/record"
	"github.com/hpungsan/glyco/internal/store"
)

// DayGroup is one calendar day of records.
type DayGroup struct {
	Day     time.Time       `json:"day"`
	Label   string          `json:"label"`
	Records []record.Record `json:"records"`
}

// RecordsList returns the records-screen transform. Records are grouped by
// calendar day in loc, days newest first; within a day insulin precedes
// glucose and each kind is newest first. clock supplies "now" for labels.
func RecordsList(clock func() time.Time, loc *time.Location, labels Labels) func([]record.Record) []DayGroup {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return func(records []record.Record) []DayGroup {
		now := clock()
		byDay := make(map[string]*DayGroup)
		for _, r := range records {
			day := startOfDay(r.Date, loc)
			key := day.Format("2006-01-02")
			g, ok := byDay[key]
			if !ok {
				g = &DayGroup{Day: day}
				byDay[key] = g
			}
			g.Records = append(g.Records, r)
		}

		groups := make([]DayGroup, 0, len(byDay))
		for _, g := range byDay {
			rs := g.Records
			sort.SliceStable(rs, func(i, j int) bool {
				ri, rj := kindRank(rs[i]), kindRank(rs[j])
				if ri != rj {
					return ri < rj
				}
				return rs[i].Date.After(rs[j].Date)
			})
			g.Label = DayLabel(g.Day, now, loc, labels)
			groups = append(groups, *g)
		}
		sort.Slice(groups, func(i, j int) bool {
			return groups[i].Day.After(groups[j].Day)
		})
		return groups
	}
}

func kindRank(r record.Record) int {
	return record.Match(r.Kind,
		func(record.Insulin) int { return 0 },
		func(record.Glucose) int { return 1 },
	)
}

// NewRecords builds the records-list view model.
func NewRecords(s *store.Store, clock func() time.Time, loc *time.Location, labels Labels) *ViewModel[[]DayGroup] {
	return New(s, RecordsList(clock, loc, labels))
}
