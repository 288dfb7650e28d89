package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireRecord is the durable shape of a record:
//
//	{"id": "...", "kind": {"insulin": {"units": 5}}, "date": "2026-01-02T08:00:00Z"}
//
// The single key inside "kind" is the discriminant.
type wireRecord struct {
	ID   string                     `json:"id"`
	Kind map[string]json.RawMessage `json:"kind"`
	Date time.Time                  `json:"date"`
}

type wireInsulin struct {
	Units int `json:"units"`
}

type wireGlucose struct {
	Value float64 `json:"value"`
}

// MarshalJSON implements json.Marshaler using the durable encoding.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Kind == nil {
		return nil, fmt.Errorf("record %s has no kind", r.ID)
	}
	payload, err := json.Marshal(Match(r.Kind,
		func(i Insulin) any { return wireInsulin{Units: i.Units} },
		func(g Glucose) any { return wireGlucose{Value: g.Value} },
	))
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireRecord{
		ID:   r.ID,
		Kind: map[string]json.RawMessage{r.KindName(): payload},
		Date: r.Date,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The kind object must carry exactly
// one known discriminant key.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("record id is empty")
	}
	if len(w.Kind) != 1 {
		return fmt.Errorf("record %s: kind must have exactly one variant, got %d", w.ID, len(w.Kind))
	}

	var kind Kind
	for name, raw := range w.Kind {
		switch name {
		case KindInsulin:
			var p wireInsulin
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("record %s: decode insulin: %w", w.ID, err)
			}
			kind = Insulin{Units: p.Units}
		case KindGlucose:
			var p wireGlucose
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("record %s: decode glucose: %w", w.ID, err)
			}
			kind = Glucose{Value: p.Value}
		default:
			return fmt.Errorf("record %s: unknown kind %q", w.ID, name)
		}
	}

	*r = Record{ID: w.ID, Kind: kind, Date: w.Date}
	return nil
}

// EncodeSnapshot serializes the full collection as a JSON array.
func EncodeSnapshot(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// DecodeSnapshot parses a JSON array produced by EncodeSnapshot. Any malformed
// element fails the whole decode; callers decide how to degrade.
func DecodeSnapshot(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate record id %s", r.ID)
		}
		seen[r.ID] = true
	}
	return records, nil
}
