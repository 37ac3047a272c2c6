package objstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvEndpoint, "localhost:9000")
	t.Setenv(EnvAccessKey, "minio")
	t.Setenv(EnvSecretKey, "minio123")
	t.Setenv(EnvUseSSL, "true")
	t.Setenv(EnvRegion, "us-east-1")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Endpoint != "localhost:9000" || !cfg.UseSSL || cfg.Region != "us-east-1" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestConfigFromEnvMissing(t *testing.T) {
	t.Setenv(EnvEndpoint, "localhost:9000")
	t.Setenv(EnvAccessKey, "")
	t.Setenv(EnvSecretKey, "")

	_, err := ConfigFromEnv()
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("got %v, want ErrNotConfigured", err)
	}
}

func TestNewDoesNotDial(t *testing.T) {
	c, err := New(Config{Endpoint: "127.0.0.1:1", AccessKey: "a", SecretKey: "b"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.client == nil {
		t.Fatal("expected minio client")
	}
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	if _, err := New(Config{Endpoint: "http://host:9000/path", AccessKey: "a", SecretKey: "b"}, nil); err == nil {
		t.Fatal("expected error for endpoint with scheme and path")
	}
}

func TestExportKey(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 5, 0, time.FixedZone("WIB", 7*3600))
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "locations-20250301T050005Z.geojson"},
		{"exports", "exports/locations-20250301T050005Z.geojson"},
		{"/exports/daily/", "exports/daily/locations-20250301T050005Z.geojson"},
	}
	for _, tt := range tests {
		if got := ExportKey(tt.prefix, at); got != tt.want {
			t.Errorf("ExportKey(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://maps/exports/a.geojson", "maps", "exports/a.geojson", false},
		{"s3://maps/a.geojson", "maps", "a.geojson", false},
		{"s3://maps", "", "", true},
		{"s3:///a.geojson", "", "", true},
		{"./a.geojson", "", "", true},
	}
	for _, tt := range tests {
		bucket, key, err := ParseURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseURL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("ParseURL(%q) = %q, %q; want %q, %q", tt.in, bucket, key, tt.bucket, tt.key)
		}
	}
	if !IsURL("s3://x/y") || IsURL("x/y") {
		t.Error("IsURL misclassified input")
	}
}

// Round-trips an object through a live server when PINMAP_TEST_S3_ENDPOINT is set.
func TestLiveRoundTrip(t *testing.T) {
	endpoint := os.Getenv("PINMAP_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("PINMAP_TEST_S3_ENDPOINT not set")
	}
	c, err := New(Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("PINMAP_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("PINMAP_TEST_S3_SECRET_KEY"),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := c.EnsureBucket(ctx, "pinmap-test"); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	data := []byte(`{"type":"FeatureCollection","features":[]}`)
	if err := c.PutGeoJSON(ctx, "pinmap-test", "roundtrip.geojson", data); err != nil {
		t.Fatalf("PutGeoJSON: %v", err)
	}
	got, err := c.GetGeoJSON(ctx, "pinmap-test", "roundtrip.geojson")
	if err != nil {
		t.Fatalf("GetGeoJSON: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %s, want %s", got, data)
	}
}
