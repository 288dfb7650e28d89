// Package share publishes an exported report somewhere the user can open or
// hand off: a local share directory or an S3 bucket.
package share

import (
	"context"
	"fmt"

	"github.com/hpungsan/glyco/internal/config"
)

// Driver identifies a publisher backend.
type Driver string

const (
	DriverFS Driver = "fs"
	DriverS3 Driver = "s3"
)

// Shared describes a published report.
type Shared struct {
	Driver   Driver `json:"driver"`
	Location string `json:"location"` // file path or s3://bucket/key
	URL      string `json:"url,omitempty"`
}

// Publisher makes a local report file shareable.
type Publisher interface {
	Publish(ctx context.Context, path string) (*Shared, error)
	Driver() Driver
}

// Open selects a publisher from config. defaultDir is used by the fs driver
// when share_dir is not set.
func Open(ctx context.Context, cfg *config.Config, defaultDir string) (Publisher, error) {
	switch Driver(cfg.Share) {
	case "", DriverFS:
		dir := cfg.ShareDir
		if dir == "" {
			dir = defaultDir
		}
		return NewFS(dir), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown share driver %s", cfg.Share)
	}
}
