// Package cache is the content-addressed Dependency Cache from spec §4.4:
// a fingerprint-keyed store of installed dependency trees, rehydrated into
// fresh sandboxes via hardlink-copy, with concurrent installs for the same
// fingerprint serialized through singleflight and bounded by a worker pool.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pactown/pactown/internal/cache/db"
	"github.com/pactown/pactown/internal/cache/workerpool"
	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/fingerprint"
	"github.com/pactown/pactown/internal/telemetry"
)

// InstallFunc populates dir with a fully installed dependency tree for the
// given fingerprint. It is supplied by the Sandbox Manager, which knows how
// to invoke pip/npm/etc. for a given RuntimeDriver; Cache itself is
// dependency-manager-agnostic.
type InstallFunc func(ctx context.Context, dir string) error

// Cache is the process-wide Dependency Cache. One Cache instance is shared
// across concurrent ServiceRunner.FastRun calls.
type Cache struct {
	cfg     config.CacheConfig
	index   *db.DB
	group   singleflight.Group
	workers *workerpool.Pool
}

// Open opens or creates the cache at cfg.CacheRoot (including its index
// database) and returns a ready-to-use Cache. maxConcurrentInstalls bounds
// how many installs may run at once via the worker pool.
func Open(cfg config.CacheConfig, maxConcurrentInstalls int) (*Cache, error) {
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(cfg.CacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create root %s: %w", cfg.CacheRoot, err)
	}
	index, err := db.Open(cfg.CacheRoot + "/index.sqlite")
	if err != nil {
		return nil, err
	}
	return &Cache{
		cfg:     cfg,
		index:   index,
		workers: workerpool.New(maxConcurrentInstalls),
	}, nil
}

// Close releases the cache's index connection.
func (c *Cache) Close() error {
	return c.index.Close()
}

// Ensure returns the on-disk root for fp, installing it via install if it
// is not already cached. Concurrent calls for the same fingerprint
// serialize through singleflight, per spec §5's concurrency-control
// requirement on the Dependency Cache.
func (c *Cache) Ensure(ctx context.Context, fp fingerprint.Fingerprint, runtimeKind string, install InstallFunc) (string, error) {
	ctx, end := telemetry.StartSpan(ctx, "cache.ensure")
	defer end()
	start := time.Now()
	defer telemetry.RecordDuration(ctx, start)

	v, err, _ := c.group.Do(string(fp), func() (any, error) {
		return c.ensureOnce(ctx, fp, runtimeKind, install)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) ensureOnce(ctx context.Context, fp fingerprint.Fingerprint, runtimeKind string, install InstallFunc) (string, error) {
	if row, ok, err := c.index.Get(ctx, string(fp)); err != nil {
		return "", err
	} else if ok {
		if validCacheRoot(row.RootPath) {
			if err := c.index.TouchHit(ctx, string(fp), time.Now()); err != nil {
				slog.WarnContext(ctx, "cache: touch hit failed", "fingerprint", fp, "err", err)
			}
			return row.RootPath, nil
		}
		// CacheCorruption (spec §7): marker missing or root gone. Quarantine
		// the stale entry and fall through to a full install.
		slog.WarnContext(ctx, "cache: quarantining corrupt entry", "fingerprint", fp, "root", row.RootPath)
		_ = os.RemoveAll(row.RootPath)
		if err := c.index.Delete(ctx, string(fp)); err != nil {
			slog.WarnContext(ctx, "cache: delete quarantined entry failed", "fingerprint", fp, "err", err)
		}
	}

	release, err := c.workers.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("cache: acquire install slot: %w", err)
	}
	defer release()

	stage, err := stageDir(c.cfg.CacheRoot, fp)
	if err != nil {
		return "", err
	}
	if err := install(ctx, stage); err != nil {
		_ = os.RemoveAll(stage)
		return "", fmt.Errorf("cache: install %s: %w", fp, err)
	}
	if err := writeCacheMarker(stage); err != nil {
		_ = os.RemoveAll(stage)
		return "", err
	}

	root, err := publish(c.cfg.CacheRoot, fp, stage)
	if err != nil {
		return "", err
	}

	size, err := dirSize(root)
	if err != nil {
		slog.WarnContext(ctx, "cache: size computation failed", "fingerprint", fp, "err", err)
	}

	now := time.Now().Unix()
	if err := c.index.Upsert(ctx, db.CachedEnvRow{
		Fingerprint: string(fp),
		RuntimeKind: runtimeKind,
		RootPath:    root,
		CreatedAt:   now,
		SizeBytes:   size,
		LastHitAt:   now,
	}); err != nil {
		return "", err
	}

	if err := c.evictIfOverBudget(ctx); err != nil {
		slog.WarnContext(ctx, "cache: eviction pass failed", "err", err)
	}

	return root, nil
}

// evictIfOverBudget removes the least-recently-hit entries until the cache
// is back within CacheConfig.MaxEntries and MaxBytes, per spec §9.1's
// resolution of the LRU-bound open question.
func (c *Cache) evictIfOverBudget(ctx context.Context) error {
	rows, err := c.index.ListByRecency(ctx)
	if err != nil {
		return err
	}
	var total int64
	for _, r := range rows {
		total += r.SizeBytes
	}
	count := len(rows)

	for i := 0; i < len(rows) && (count > c.cfg.MaxEntries || total > c.cfg.MaxBytes); i++ {
		victim := rows[i]
		if victim.RefCount > 0 {
			// Purge must not delete an entry a sandbox still references
			// (spec §4.4); skip it and keep walking the LRU order.
			continue
		}
		if err := os.RemoveAll(victim.RootPath); err != nil {
			slog.WarnContext(ctx, "cache: evict remove failed", "fingerprint", victim.Fingerprint, "err", err)
			continue
		}
		if err := c.index.Delete(ctx, victim.Fingerprint); err != nil {
			return err
		}
		count--
		total -= victim.SizeBytes
		slog.InfoContext(ctx, "cache: evicted", "fingerprint", victim.Fingerprint, "size_bytes", victim.SizeBytes)
	}
	return nil
}

// Rehydrate copies fp's cached install into destDir via hardlink-copy.
func (c *Cache) Rehydrate(ctx context.Context, fp fingerprint.Fingerprint, destDir string) error {
	ctx, end := telemetry.StartSpan(ctx, "cache.rehydrate")
	defer end()
	start := time.Now()
	defer telemetry.RecordDuration(ctx, start)

	row, ok, err := c.index.Get(ctx, string(fp))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cache: no cached entry for fingerprint %s", fp)
	}
	if err := Rehydrate(row.RootPath, destDir); err != nil {
		return err
	}
	// destDir now holds a live copy of this entry; bump ref_count so
	// evictIfOverBudget won't purge it out from under the sandbox that just
	// rehydrated it. There is no sandbox-teardown path yet to pair with a
	// decrement (see DESIGN.md); ref_count here is a conservative
	// monotonically-growing guard against eviction, not a precise live count.
	if err := c.index.IncRef(ctx, string(fp)); err != nil {
		slog.WarnContext(ctx, "cache: incref failed", "fingerprint", fp, "err", err)
	}
	return nil
}
