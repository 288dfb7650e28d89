package healthsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glucose.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestFile_FetchHistory(t *testing.T) {
	path := writeFile(t, `{"id":"a","value":110,"date":"2024-05-01T08:00:00Z"}
{"id":"b","value":7.8,"unit":"mmol/L","date":"2024-05-01T09:00:00Z"}

not json
{"id":"c","value":5,"unit":"furlongs","date":"2024-05-01T10:00:00Z"}
{"id":"","value":100,"date":"2024-05-01T11:00:00Z"}
`)
	samples, err := NewFile(path, nil).FetchHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	require.Equal(t, "b", samples[0].ID)
	require.InDelta(t, 7.8*MmolToMgdl, samples[0].Value, 1e-9)
	require.Equal(t, "a", samples[1].ID)
	require.Equal(t, 110.0, samples[1].Value)
}

func TestFile_FetchLatest(t *testing.T) {
	path := writeFile(t, `{"id":"a","value":110,"date":"2024-05-01T08:00:00Z"}
{"id":"b","value":120,"date":"2024-05-02T08:00:00Z"}
`)
	s, err := NewFile(path, nil).FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "b", s.ID)
}

func TestFile_RequestAuthorization(t *testing.T) {
	path := writeFile(t, "")
	ok, err := NewFile(path, nil).RequestAuthorization(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = NewFile(filepath.Join(t.TempDir(), "missing.jsonl"), nil).RequestAuthorization(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFile_MissingFileFetchFails(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "missing.jsonl"), nil).FetchHistory(context.Background(), 5)
	require.Error(t, err)
}
