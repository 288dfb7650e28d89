package viewmodel

import (
	"sort"

	"github.com/hpungsan/glyco/internal/record"
	"github.com/hpungsan/glyco/internal/store"
)

// TrendSize is the number of glucose readings in the home trend.
const TrendSize = 5

// Home is the home-screen projection.
type Home struct {
	LatestGlucose *record.Record  `json:"latest_glucose"`
	LatestInsulin *record.Record  `json:"latest_insulin"`
	Trend         []record.Record `json:"trend"`
}

// HomeSummary picks the latest glucose and insulin records and up to
// TrendSize recent glucose readings, newest first.
func HomeSummary(records []record.Record) Home {
	sorted := append([]record.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	h := Home{Trend: []record.Record{}}
	for i := range sorted {
		r := sorted[i]
		switch r.Kind.(type) {
		case record.Insulin:
			if h.LatestInsulin == nil {
				h.LatestInsulin = &r
			}
		case record.Glucose:
			if h.LatestGlucose == nil {
				h.LatestGlucose = &r
			}
			if len(h.Trend) < TrendSize {
				h.Trend = append(h.Trend, r)
			}
		}
	}
	return h
}

// NewHome builds the home-summary view model.
func NewHome(s *store.Store) *ViewModel[Home] {
	return New(s, HomeSummary)
}
