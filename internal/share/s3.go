package share

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultURLExpiry is how long a presigned report link stays valid.
const DefaultURLExpiry = 24 * time.Hour

// S3Config holds construction parameters. Credentials come from the default
// AWS chain (environment, shared config, instance role).
type S3Config struct {
	Bucket    string
	Region    string // default us-east-1
	Endpoint  string // optional; e.g. MinIO
	PathStyle bool
	Prefix    string // key prefix, default "reports/"
	Expiry    time.Duration
}

// S3 uploads reports to a bucket and returns a presigned GET link.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	expiry  time.Duration
}

// NewS3 builds a publisher from cfg and the default AWS configuration chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3WithClient(client, cfg), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client *s3.Client, cfg S3Config) *S3 {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "reports/"
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  prefix,
		expiry:  expiry,
	}
}

func (s *S3) Driver() Driver { return DriverS3 }

// Publish uploads the file under prefix+basename and presigns a GET for it.
func (s *S3) Publish(ctx context.Context, path string) (*Shared, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	key := s.prefix + filepath.Base(path)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}

	signed, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key},
		func(po *s3.PresignOptions) { po.Expires = s.expiry })
	if err != nil {
		return nil, fmt.Errorf("presign report url: %w", err)
	}
	return &Shared{
		Driver:   DriverS3,
		Location: fmt.Sprintf("s3://%s/%s", s.bucket, key),
		URL:      signed.URL,
	}, nil
}
