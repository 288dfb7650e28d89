package report

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/errors"
)

// WriteInput contains parameters for Write.
type WriteInput struct {
	Path       string // optional, default: <ExportsDir>/glucose-report-<timestamp>.html
	ExportsDir string // ~/.glyco/exports
	Locale     string
	Unit       string
	Location   *time.Location
}

// WriteOutput describes a written report.
type WriteOutput struct {
	ReportID   string `json:"report_id"`
	Path       string `json:"path"`
	Count      int    `json:"count"`
	Pages      int    `json:"pages"`
	ExportedAt int64  `json:"exported_at"`
}

// Write renders doc and writes it to a temp file that is renamed into place,
// so an existing report is preserved on failure. The destination is checked
// with ValidatePath first. Render and I/O failures are EXPORT_FAILED.
func Write(ctx context.Context, cfg *config.Config, doc Document, input WriteInput) (*WriteOutput, error) {
	exportPath := input.Path
	if exportPath == "" {
		exportPath = DefaultPath(input.ExportsDir, doc.GeneratedAt)
	}
	if err := ValidatePath(exportPath, input.ExportsDir, cfg); err != nil {
		return nil, err
	}

	body, err := RenderHTML(doc, input.Locale, input.Unit, input.Location)
	if err != nil {
		return nil, errors.NewExportFailed(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewExportFailed(fmt.Errorf("create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewExportFailed(fmt.Errorf("generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewExportFailed(fmt.Errorf("create report file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(body); err != nil {
		return nil, errors.NewExportFailed(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewExportFailed(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewExportFailed(fmt.Errorf("close report file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("path must not be a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("report destination already exists; choose a new path")
			}
		}
		return nil, errors.NewExportFailed(fmt.Errorf("finalize report: %w", err))
	}

	success = true
	return &WriteOutput{
		ReportID:   doc.ID,
		Path:       exportPath,
		Count:      doc.Count,
		Pages:      len(doc.Pages),
		ExportedAt: doc.GeneratedAt.Unix(),
	}, nil
}

// DefaultPath is <exportsDir>/glucose-report-<timestamp>.html.
func DefaultPath(exportsDir string, at time.Time) string {
	return filepath.Join(exportsDir, fmt.Sprintf("glucose-report-%s.html", at.Format("2006-01-02T150405")))
}
