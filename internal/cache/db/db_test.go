package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache-index.sqlite")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestUpsertAndGet(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	row := CachedEnvRow{
		Fingerprint: "abc123",
		RuntimeKind: "python",
		RootPath:    "/cache/abc123",
		CreatedAt:   1000,
		SizeBytes:   4096,
		RefCount:    0,
		LastHitAt:   1000,
	}
	if err := d.Upsert(ctx, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := d.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected row to exist")
	}
	if got.RootPath != row.RootPath || got.SizeBytes != row.SizeBytes {
		t.Errorf("got %+v, want %+v", got, row)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	d := openTestDB(t)
	_, ok, err := d.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestTouchHitUpdatesLastHitNotRefCount(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	row := CachedEnvRow{Fingerprint: "x", RuntimeKind: "node", RootPath: "/cache/x", CreatedAt: 1, SizeBytes: 1, LastHitAt: 1}
	if err := d.Upsert(ctx, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	now := time.Unix(5000, 0)
	if err := d.TouchHit(ctx, "x", now); err != nil {
		t.Fatalf("TouchHit: %v", err)
	}
	got, _, err := d.Get(ctx, "x")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RefCount != 0 {
		t.Errorf("RefCount = %d, want 0", got.RefCount)
	}
	if got.LastHitAt != now.Unix() {
		t.Errorf("LastHitAt = %d, want %d", got.LastHitAt, now.Unix())
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	row := CachedEnvRow{Fingerprint: "y", RuntimeKind: "python", RootPath: "/cache/y", CreatedAt: 1, LastHitAt: 1}
	if err := d.Upsert(ctx, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := d.Delete(ctx, "y"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err := d.Get(ctx, "y")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected row to be gone after Delete")
	}
}

func TestListByRecencyOrdersOldestFirst(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	rows := []CachedEnvRow{
		{Fingerprint: "newer", RuntimeKind: "python", RootPath: "/cache/newer", CreatedAt: 1, LastHitAt: 200},
		{Fingerprint: "older", RuntimeKind: "python", RootPath: "/cache/older", CreatedAt: 1, LastHitAt: 100},
	}
	for _, r := range rows {
		if err := d.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	list, err := d.ListByRecency(ctx)
	if err != nil {
		t.Fatalf("ListByRecency: %v", err)
	}
	if len(list) != 2 || list[0].Fingerprint != "older" || list[1].Fingerprint != "newer" {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestCountAndTotalBytes(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	for _, r := range []CachedEnvRow{
		{Fingerprint: "a", RuntimeKind: "python", RootPath: "/a", SizeBytes: 100, LastHitAt: 1},
		{Fingerprint: "b", RuntimeKind: "node", RootPath: "/b", SizeBytes: 250, LastHitAt: 2},
	} {
		if err := d.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	n, err := d.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
	total, err := d.TotalBytes(ctx)
	if err != nil {
		t.Fatalf("TotalBytes: %v", err)
	}
	if total != 350 {
		t.Errorf("TotalBytes = %d, want 350", total)
	}
}
