package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"agrilog/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")
	cases := map[string]struct {
		cfg  config.BlobConfig
		want Driver
	}{
		"default fs": {cfg: config.BlobConfig{FSRoot: root}, want: DriverFilesystem},
		"fs":         {cfg: config.BlobConfig{Driver: "FS", FSRoot: root}, want: DriverFilesystem},
		"memory":     {cfg: config.BlobConfig{Driver: "memory"}, want: DriverMemory},
		"s3": {cfg: config.BlobConfig{Driver: "s3", S3: config.S3Config{
			Bucket: "exports", Endpoint: "https://minio.local", PathStyle: true,
			AccessKeyID: "AKIA", SecretAccessKey: "SECRET",
		}}, want: DriverS3},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store, err := Open(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if store.Driver() != tc.want {
				t.Fatalf("driver = %s, want %s", store.Driver(), tc.want)
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(context.Background(), config.BlobConfig{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(context.Background(), config.BlobConfig{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestTestConstructorsShareSemantics(t *testing.T) {
	ctx := context.Background()
	for name, store := range map[string]Store{"memory": NewMemory(), "s3": NewMockS3ForTests()} {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, "k", strings.NewReader("v"), PutOptions{}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "k", strings.NewReader("v"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := store.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
