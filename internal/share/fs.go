package share

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FS copies reports into a directory.
type FS struct {
	Dir string
}

func NewFS(dir string) *FS { return &FS{Dir: dir} }

func (f *FS) Driver() Driver { return DriverFS }

// Publish copies path into Dir. A report already in Dir is returned as-is.
func (f *FS) Publish(ctx context.Context, path string) (*Shared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(f.Dir)
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if dst == src {
		return &Shared{Driver: DriverFS, Location: dst, URL: fileURL(dst)}, nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create share directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("create shared copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return nil, fmt.Errorf("copy report: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close shared copy: %w", err)
	}
	return &Shared{Driver: DriverFS, Location: dst, URL: fileURL(dst)}, nil
}

func fileURL(path string) string {
	return "file://" + filepath.ToSlash(path)
}
