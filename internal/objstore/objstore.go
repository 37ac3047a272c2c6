// Package objstore uploads and fetches GeoJSON exports on S3-compatible
// object storage (MinIO, AWS S3, R2).
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Environment variables read by ConfigFromEnv
const (
	EnvEndpoint  = "PINMAP_S3_ENDPOINT"
	EnvAccessKey = "PINMAP_S3_ACCESS_KEY"
	EnvSecretKey = "PINMAP_S3_SECRET_KEY"
	EnvUseSSL    = "PINMAP_S3_USE_SSL"
	EnvRegion    = "PINMAP_S3_REGION"
)

// GeoJSONContentType is the registered media type for GeoJSON.
const GeoJSONContentType = "application/geo+json"

// ErrNotConfigured is returned when required credentials are missing.
var ErrNotConfigured = errors.New("object storage not configured")

// Config holds connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// ConfigFromEnv reads Config from PINMAP_S3_* variables.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Endpoint:  os.Getenv(EnvEndpoint),
		AccessKey: os.Getenv(EnvAccessKey),
		SecretKey: os.Getenv(EnvSecretKey),
		UseSSL:    os.Getenv(EnvUseSSL) == "true" || os.Getenv(EnvUseSSL) == "1",
		Region:    os.Getenv(EnvRegion),
	}
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return cfg, fmt.Errorf("%w: set %s, %s and %s", ErrNotConfigured, EnvEndpoint, EnvAccessKey, EnvSecretKey)
	}
	return cfg, nil
}

// Client wraps a minio client.
type Client struct {
	client *minio.Client
	region string
	log    *slog.Logger
}

// New creates a client. It does not contact the server.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return &Client{client: mc, region: cfg.Region, log: log}, nil
}

// EnsureBucket creates bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	c.log.Info("created bucket", "bucket", bucket)
	return nil
}

// PutGeoJSON uploads data under key, replacing any existing object.
func (c *Client) PutGeoJSON(ctx context.Context, bucket, key string, data []byte) error {
	_, err := c.client.PutObject(ctx, bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: GeoJSONContentType},
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	c.log.Info("uploaded export", "bucket", bucket, "key", key, "bytes", len(data))
	return nil
}

// GetGeoJSON downloads the object at key.
func (c *Client) GetGeoJSON(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("get %s/%s: object does not exist", bucket, key)
		}
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// ExportKey names an export object by time, e.g.
// "exports/locations-20250301T120000Z.geojson".
func ExportKey(prefix string, at time.Time) string {
	prefix = strings.Trim(prefix, "/")
	name := "locations-" + at.UTC().Format("20060102T150405Z") + ".geojson"
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// ParseURL splits "s3://bucket/key" into bucket and key.
func ParseURL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3:// url: %q", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs a bucket and key: %q", raw)
	}
	return bucket, key, nil
}

// IsURL reports whether s looks like an s3:// location.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "s3://")
}
