package healthsource

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// File reads samples from a JSON-lines export, one object per line:
//
//	{"id":"abc","value":7.8,"unit":"mmol/L","date":"2024-05-01T08:00:00Z"}
//
// unit defaults to mg/dL. Malformed lines are skipped.
type File struct {
	Path string
	Log  *zap.Logger
}

type fileLine struct {
	ID    string    `json:"id"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit"`
	Date  time.Time `json:"date"`
}

// NewFile returns a file source for path.
func NewFile(path string, log *zap.Logger) *File {
	if log == nil {
		log = zap.NewNop()
	}
	return &File{Path: path, Log: log}
}

func (f *File) Name() string { return "file" }

// RequestAuthorization grants access when the file exists and is readable.
func (f *File) RequestAuthorization(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	_ = fh.Close()
	return true, nil
}

func (f *File) FetchLatest(ctx context.Context) (*Sample, error) {
	samples, err := f.FetchHistory(ctx, 1)
	if err != nil || len(samples) == 0 {
		return nil, err
	}
	return &samples[0], nil
}

func (f *File) FetchHistory(ctx context.Context, limit int) ([]Sample, error) {
	if limit <= 0 {
		return nil, nil
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open health file: %w", err)
	}
	defer fh.Close()

	var samples []Sample
	scanner := bufio.NewScanner(fh)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var line fileLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			f.Log.Warn("skipping malformed health file line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		s, ok := line.sample()
		if !ok {
			f.Log.Warn("skipping invalid health file sample", zap.Int("line", lineNo), zap.String("id", line.ID))
			continue
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}
	return newestFirst(samples, limit), nil
}

func (l fileLine) sample() (Sample, bool) {
	if l.ID == "" || l.Date.IsZero() || l.Value <= 0 {
		return Sample{}, false
	}
	value := l.Value
	switch strings.ToLower(strings.TrimSpace(l.Unit)) {
	case "", "mg/dl":
	case "mmol/l":
		value *= MmolToMgdl
	default:
		return Sample{}, false
	}
	return Sample{ID: l.ID, Value: value, Date: l.Date}, true
}
