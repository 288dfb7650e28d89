package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetValue(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	ctx := context.Background()

	_, found, err := GetValue(ctx, database, "health_records")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, PutValue(ctx, database, "health_records", []byte(`[]`)))
	payload, found, err := GetValue(ctx, database, "health_records")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `[]`, string(payload))

	// Overwrite
	require.NoError(t, PutValue(ctx, database, "health_records", []byte(`[1]`)))
	payload, _, err = GetValue(ctx, database, "health_records")
	require.NoError(t, err)
	require.Equal(t, `[1]`, string(payload))
}

func TestDeleteValue(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	ctx := context.Background()

	deleted, err := DeleteValue(ctx, database, "missing")
	require.NoError(t, err)
	require.False(t, deleted)

	require.NoError(t, PutValue(ctx, database, "sugar_unit", []byte("mmol/L")))
	deleted, err = DeleteValue(ctx, database, "sugar_unit")
	require.NoError(t, err)
	require.True(t, deleted)

	_, found, err := GetValue(ctx, database, "sugar_unit")
	require.NoError(t, err)
	require.False(t, found)
}
