package report

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/errors"
	"github.com/hpungsan/glyco/internal/record"
)

func sampleDoc() Document {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return Build([]record.Record{glucoseAt(120, at)}, at, Options{})
}

func TestWrite_DefaultPath(t *testing.T) {
	exports := t.TempDir()
	doc := sampleDoc()

	out, err := Write(context.Background(), config.DefaultConfig(), doc, WriteInput{ExportsDir: exports, Locale: "ar"})
	require.NoError(t, err)
	require.Equal(t, DefaultPath(exports, doc.GeneratedAt), out.Path)
	require.Equal(t, 1, out.Count)
	require.Equal(t, 1, out.Pages)
	require.Equal(t, doc.ID, out.ReportID)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Contains(t, string(data), `dir="rtl"`)

	entries, err := os.ReadDir(exports)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file is cleaned up")
}

func TestWrite_OverwritesExisting(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("overwrite unsupported on windows")
	}
	exports := t.TempDir()
	path := filepath.Join(exports, "mine.html")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	_, err := Write(context.Background(), config.DefaultConfig(), sampleDoc(), WriteInput{Path: path, ExportsDir: exports})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEqual(t, "old", string(data))
}

func TestWrite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Write(ctx, config.DefaultConfig(), sampleDoc(), WriteInput{ExportsDir: t.TempDir()})
	require.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestValidatePath_TraversalRejected(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, p := range []string{"../r.html", "/tmp/../etc/r.html", "/tmp/safe/../../r.html"} {
		err := ValidatePath(p, "/tmp", cfg)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), p)
	}
}

func TestValidatePath_ExtensionRequired(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	for _, p := range []string{"/tmp/report", "/tmp/report.pdf", "/tmp/report.jsonl"} {
		err := ValidatePath(p, "", cfg)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), p)
	}
}

func TestValidatePath_DirectoryRestriction(t *testing.T) {
	exports := t.TempDir()
	other := t.TempDir()
	cfg := config.DefaultConfig()

	require.NoError(t, ValidatePath(filepath.Join(exports, "r.html"), exports, cfg))

	err := ValidatePath(filepath.Join(other, "r.html"), exports, cfg)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	err = ValidatePath(filepath.Join(exports, "sub", "r.html"), exports, cfg)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "subdirectories are not allowed")

	cfg.AllowedPaths = []string{other}
	require.NoError(t, ValidatePath(filepath.Join(other, "r.html"), exports, cfg))
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	require.NoError(t, ValidatePath(filepath.Join(t.TempDir(), "r.html"), "", cfg))
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	exports := t.TempDir()
	target := filepath.Join(t.TempDir(), "target.html")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0600))
	link := filepath.Join(exports, "link.html")
	require.NoError(t, os.Symlink(target, link))

	cfg := config.DefaultConfig()
	require.True(t, errors.Is(ValidatePath(link, exports, cfg), errors.ErrInvalidRequest))

	cfg.AllowUnsafePaths = true
	require.True(t, errors.Is(ValidatePath(link, exports, cfg), errors.ErrInvalidRequest))
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/report.html", false},
		{"../report.html", true},
		{"/home/../etc/passwd", true},
		{"./report.html", false},
		{"report..v2.html", false}, // .. not as path component
		{"/tmp/a/b/../c.html", true},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, tc.contains, containsTraversal(tc.path))
		})
	}
}
