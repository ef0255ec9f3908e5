package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agrilog/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestPutGetHeadDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	key := "exports/u1/e1/cultivations.csv"
	info, err := s.Put(ctx, key, strings.NewReader("year,slug\n"), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"format": "csv"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 10 || len(info.ETag) != 64 || info.URL != "http://local.blob/"+key {
		t.Fatalf("unexpected info %+v", info)
	}

	got, rc, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "year,slug\n" || got.ContentType != "text/csv" || got.Metadata["format"] != "csv" {
		t.Fatalf("unexpected get %+v %q", got, body)
	}

	head, err := s.Head(ctx, key)
	if err != nil || head.ETag != info.ETag {
		t.Fatalf("head mismatch: %+v %v", head, err)
	}

	if _, err := s.Put(ctx, key, strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	deleted, err := s.Delete(ctx, key)
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	deleted, err = s.Delete(ctx, key)
	if err != nil || deleted {
		t.Fatalf("second delete should report missing: %v %v", deleted, err)
	}
	if _, _, err := s.Get(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if _, err := s.Head(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
}

func TestListFiltersByPrefixInKeyOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, key := range []string{"exports/b/x.json", "exports/a/x.csv", "other/y"} {
		if _, err := s.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "exports/a/x.csv" || infos[1].Key != "exports/b/x.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected all blobs, got %d", len(all))
	}
}

func TestSanitizeKey(t *testing.T) {
	cases := map[string]bool{
		"exports/a/b.csv":   true,
		"a..b":              true,
		"":                  false,
		"   ":               false,
		"/etc/passwd":       false,
		"../escape":         false,
		"exports/../../x":   false,
		"exports/file.meta": false,
	}
	for key, ok := range cases {
		_, err := sanitizeKey(key)
		if (err == nil) != ok {
			t.Fatalf("sanitizeKey(%q) err=%v, want ok=%v", key, err, ok)
		}
	}
}

func TestPresignURL(t *testing.T) {
	s := newStore(t)
	url, err := s.PresignURL(context.Background(), "a/b", core.SignedURLOptions{})
	if err != nil || url != "http://local.blob/a/b" {
		t.Fatalf("unexpected url %q %v", url, err)
	}
	if _, err := s.PresignURL(context.Background(), "a/b", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestCorruptMetadataSurfacesDecodeError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if _, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "k.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := s.Head(ctx, "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := s.List(ctx, ""); err == nil {
		t.Fatalf("expected list to fail on corrupt sidecar")
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	wd, _ := os.Getwd()
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Root() != DefaultRoot {
		t.Fatalf("expected default root, got %s", s.Root())
	}
}
