// Package healthsource adapts external glucose data (a Nightscout server or a
// JSONL export) into normalized samples the record store can merge.
package healthsource

import (
	"context"
	"sort"
	"time"
)

// MmolToMgdl converts a mmol/L glucose concentration to mg/dL.
const MmolToMgdl = 18.0182

// Sample is one glucose reading from an external source, always in mg/dL.
type Sample struct {
	// ID is the source's own stable identifier, reused as the record id
	ID    string    `json:"id"`
	Value float64   `json:"value"`
	Date  time.Time `json:"date"`
}

// Source is the contract every external health source satisfies.
type Source interface {
	// RequestAuthorization completes once with whether access was granted.
	// A denial is (false, nil); err is reserved for transport failures.
	RequestAuthorization(ctx context.Context) (bool, error)

	// FetchLatest returns the most recent sample, or nil when there is none.
	FetchLatest(ctx context.Context) (*Sample, error)

	// FetchHistory returns at most limit samples, newest first.
	FetchHistory(ctx context.Context, limit int) ([]Sample, error)

	// Name identifies the source in logs and errors.
	Name() string
}

// newestFirst sorts samples by date descending and truncates to limit.
// limit <= 0 means no truncation.
func newestFirst(samples []Sample, limit int) []Sample {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Date.After(samples[j].Date)
	})
	if limit > 0 && len(samples) > limit {
		samples = samples[:limit]
	}
	return samples
}
