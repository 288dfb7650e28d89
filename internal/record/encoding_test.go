package record

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarshalJSON_Shape(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 15, 0, 0, time.UTC)
	r := WithID("11111111-1111-1111-1111-111111111111", Insulin{Units: 5}, at)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"id":"11111111-1111-1111-1111-111111111111","kind":{"insulin":{"units":5}},"date":"2025-06-01T09:15:00Z"}`,
		string(data))

	g := WithID("g1", Glucose{Value: 140.5}, at)
	data, err = json.Marshal(g)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"g1","kind":{"glucose":{"value":140.5}},"date":"2025-06-01T09:15:00Z"}`, string(data))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	records := []Record{
		New(Insulin{Units: 5}, time.Date(2025, 6, 1, 9, 0, 0, 0, loc)),
		New(Glucose{Value: 140}, time.Date(2025, 6, 1, 8, 0, 0, 123456789, loc)),
		WithID("ns-abc", Glucose{Value: 99.9}, time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC)),
	}

	data, err := EncodeSnapshot(records)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, decoded, len(records))

	for i := range records {
		require.Equal(t, records[i].ID, decoded[i].ID)
		require.Equal(t, records[i].Kind, decoded[i].Kind)
		require.True(t, records[i].Date.Equal(decoded[i].Date), "date %d: %v != %v", i, records[i].Date, decoded[i].Date)
	}
}

func TestEncodeSnapshot_Empty(t *testing.T) {
	data, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestDecodeSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not json", `{{{`, ""},
		{"not an array", `{"id":"x"}`, ""},
		{"missing id", `[{"kind":{"insulin":{"units":1}},"date":"2025-01-01T00:00:00Z"}]`, "id is empty"},
		{"two variants", `[{"id":"a","kind":{"insulin":{"units":1},"glucose":{"value":2}},"date":"2025-01-01T00:00:00Z"}]`, "exactly one variant"},
		{"no variant", `[{"id":"a","kind":{},"date":"2025-01-01T00:00:00Z"}]`, "exactly one variant"},
		{"unknown variant", `[{"id":"a","kind":{"ketone":{"value":1}},"date":"2025-01-01T00:00:00Z"}]`, "unknown kind"},
		{"bad payload", `[{"id":"a","kind":{"insulin":{"units":"five"}},"date":"2025-01-01T00:00:00Z"}]`, "decode insulin"},
		{"bad date", `[{"id":"a","kind":{"insulin":{"units":1}},"date":"yesterday"}]`, ""},
		{"duplicate id", `[{"id":"a","kind":{"insulin":{"units":1}},"date":"2025-01-01T00:00:00Z"},{"id":"a","kind":{"glucose":{"value":1}},"date":"2025-01-01T00:00:00Z"}]`, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tt.payload))
			require.Error(t, err)
			if tt.wantErr != "" {
				require.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestMarshalJSON_NilKind(t *testing.T) {
	_, err := json.Marshal(Record{ID: "x"})
	require.Error(t, err)
}
