package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"agrilog/internal/blob/core"
)

func TestMockedLifecycle(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if store.Driver() != core.DriverS3 || store.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected store identity")
	}
	info, err := store.Put(ctx, "exports/u1/e1/cultivations.csv", bytes.NewReader([]byte("hello")), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"format": "csv"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/u1/e1/cultivations.csv" || info.ContentType != "text/csv" || info.Size != 5 || info.ETag != "etag123" {
		t.Fatalf("unexpected info %#v", info)
	}
	if info.Metadata["format"] != "csv" {
		t.Fatalf("expected metadata round trip, got %v", info.Metadata)
	}
	if _, err := store.Put(ctx, "exports/u1/e1/cultivations.csv", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	_, rc, err := store.Get(ctx, "exports/u1/e1/cultivations.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello" {
		t.Fatalf("get mismatch: %q", data)
	}

	url, err := store.PresignURL(ctx, "exports/u1/e1/cultivations.csv", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("presign: %v %s", err, url)
	}

	if ok, err := store.Delete(ctx, "exports/u1/e1/cultivations.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "exports/u1/e1/cultivations.csv"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
}

func TestMissingKeysMapToErrNotFound(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	store, bucket := newMock(2)
	ctx := context.Background()
	for _, key := range []string{"k/c", "k/a", "k/b", "other"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	bucket.requests = nil
	infos, err := store.List(ctx, "k/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 || infos[0].Key != "k/a" || infos[2].Key != "k/c" || infos[0].ETag != "etag" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	if len(bucket.requests) != 2 {
		t.Fatalf("expected two pages, got %d requests", len(bucket.requests))
	}
	if empty, err := store.List(ctx, "none/"); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, empty)
	}
}

func TestPresignRejectsNonGet(t *testing.T) {
	store := NewMockForTests()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestNewValidatesAndUsesStaticCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	s, err := New(context.Background(), Config{
		Bucket:          "bkt",
		Endpoint:        "https://minio.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	creds, err := s.client.Options().Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "AKIA" {
		t.Fatalf("expected static credentials, got %+v %v", creds, err)
	}
	if s.client.Options().Region != DefaultRegion {
		t.Fatalf("expected default region, got %s", s.client.Options().Region)
	}
}

func TestFromHeadNilFields(t *testing.T) {
	store := NewMockForTests()
	info := store.fromHead("k", 10, nil, nil, nil, nil)
	if info.ContentType != "" || info.ETag != "" || info.LastModified.IsZero() {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestDecodeChunked(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
		ok   bool
	}{
		"single":       {in: "5\r\nhello\r\n0\r\n\r\n", want: "hello", ok: true},
		"multi":        {in: "3\r\nhel\r\n2\r\nlo\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n", want: "hello", ok: true},
		"extension":    {in: "5;chunk-signature=abc\r\nhello\r\n0;chunk-signature=def\r\n\r\n", want: "hello", ok: true},
		"not chunked":  {in: "plain body", ok: false},
		"short":        {in: "5\r\nabc\r\n0\r\n", ok: false},
		"bad size hex": {in: "zz\r\nabc\r\n", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := decodeChunked([]byte(tc.in))
			if ok != tc.ok || (ok && string(got) != tc.want) {
				t.Fatalf("decodeChunked(%q) = %q, %v", tc.in, got, ok)
			}
		})
	}
}
