package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/fingerprint"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(config.CacheConfig{CacheRoot: t.TempDir()}, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func writeFile(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

func TestEnsureInstallsOnMiss(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()
	fp := fingerprint.Fingerprint("fp1")

	var calls int32
	install := func(ctx context.Context, dir string) error {
		atomic.AddInt32(&calls, 1)
		return writeFile(dir, "marker.txt", "hi")
	}

	root, err := c.Ensure(ctx, fp, "python", install)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "marker.txt")); err != nil {
		t.Errorf("expected marker.txt under %s: %v", root, err)
	}
	if calls != 1 {
		t.Errorf("install called %d times, want 1", calls)
	}
}

func TestEnsureReusesCacheOnHit(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()
	fp := fingerprint.Fingerprint("fp2")

	var calls int32
	install := func(ctx context.Context, dir string) error {
		atomic.AddInt32(&calls, 1)
		return writeFile(dir, "marker.txt", "hi")
	}

	if _, err := c.Ensure(ctx, fp, "python", install); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if _, err := c.Ensure(ctx, fp, "python", install); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if calls != 1 {
		t.Errorf("install called %d times, want 1 (second call should be a cache hit)", calls)
	}
}

func TestRehydrateCopiesCachedTree(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()
	fp := fingerprint.Fingerprint("fp3")

	install := func(ctx context.Context, dir string) error {
		return writeFile(dir, "lib.py", "print(1)")
	}
	if _, err := c.Ensure(ctx, fp, "python", install); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	dest := t.TempDir()
	if err := c.Rehydrate(ctx, fp, dest); err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "lib.py"))
	if err != nil {
		t.Fatalf("read rehydrated file: %v", err)
	}
	if string(data) != "print(1)" {
		t.Errorf("content = %q", data)
	}
}

func TestRehydrateMissingFingerprintErrors(t *testing.T) {
	c := openTestCache(t)
	if err := c.Rehydrate(context.Background(), fingerprint.Fingerprint("nope"), t.TempDir()); err == nil {
		t.Fatal("expected error for unknown fingerprint")
	}
}

func TestEvictionRespectsMaxEntries(t *testing.T) {
	c, err := Open(config.CacheConfig{CacheRoot: t.TempDir(), MaxEntries: 1, MaxBytes: 1 << 30}, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	install := func(ctx context.Context, dir string) error {
		return writeFile(dir, "f.txt", "x")
	}
	if _, err := c.Ensure(ctx, "fp-a", "python", install); err != nil {
		t.Fatalf("Ensure a: %v", err)
	}
	if _, err := c.Ensure(ctx, "fp-b", "python", install); err != nil {
		t.Fatalf("Ensure b: %v", err)
	}

	n, err := c.index.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1 after eviction", n)
	}
}
