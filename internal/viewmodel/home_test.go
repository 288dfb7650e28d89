package viewmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/glyco/internal/record"
)

func TestHomeSummary(t *testing.T) {
	base := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	var records []record.Record
	for i := 0; i < 7; i++ {
		records = append(records, record.New(record.Glucose{Value: float64(100 + i)}, base.Add(time.Duration(i)*time.Hour)))
	}
	ins := record.New(record.Insulin{Units: 5}, base.Add(90*time.Minute))
	records = append(records, ins)

	h := HomeSummary(records)
	require.NotNil(t, h.LatestGlucose)
	g, _ := h.LatestGlucose.Glucose()
	require.Equal(t, 106.0, g.Value)

	require.NotNil(t, h.LatestInsulin)
	require.Equal(t, ins.ID, h.LatestInsulin.ID)

	require.Len(t, h.Trend, TrendSize)
	first, _ := h.Trend[0].Glucose()
	last, _ := h.Trend[TrendSize-1].Glucose()
	require.Equal(t, 106.0, first.Value)
	require.Equal(t, 102.0, last.Value)
}

func TestHomeSummary_Empty(t *testing.T) {
	h := HomeSummary(nil)
	require.Nil(t, h.LatestGlucose)
	require.Nil(t, h.LatestInsulin)
	require.NotNil(t, h.Trend)
	require.Empty(t, h.Trend)
}

func TestHomeSummary_DoesNotMutateInput(t *testing.T) {
	base := time.Now()
	a := record.New(record.Glucose{Value: 1}, base)
	b := record.New(record.Glucose{Value: 2}, base.Add(time.Hour))
	in := []record.Record{a, b}
	_ = HomeSummary(in)
	require.Equal(t, a.ID, in[0].ID)
}
