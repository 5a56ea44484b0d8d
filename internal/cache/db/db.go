// Package db is the CachedEnv index: a small SQLite table mapping a
// DependencyFingerprint to its on-disk root, size, and recency, so the
// Dependency Cache can answer "do we already have this?" and run LRU
// eviction without walking the filesystem. Schema changes go through
// golang-migrate so upgrades on an existing cache root are safe.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CachedEnvRow mirrors the CachedEnv data model from spec §3.
type CachedEnvRow struct {
	Fingerprint string
	RuntimeKind string
	RootPath    string
	CreatedAt   int64
	SizeBytes   int64
	RefCount    int
	LastHitAt   int64
}

// DB wraps the cache index's *sql.DB connection and hand-written queries,
// following the sqlc-style Queries shape the teacher's (unbuildable)
// boxer.go reached for, adapted to our own schema.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the SQLite index at path and runs any
// pending migrations. Like the teacher's sqlite usage elsewhere in the
// pack, the connection is capped at a single writer to avoid SQLITE_BUSY
// under the cache's own per-fingerprint locking.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := migrateUp(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrateUp(conn *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("db: migration source: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("db: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("db: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Upsert inserts a CachedEnv row, used on a cache miss after a fresh
// install lands under the cache root. If the fingerprint already exists,
// only root_path, size_bytes and last_hit_at are updated.
func (d *DB) Upsert(ctx context.Context, row CachedEnvRow) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO cached_envs (fingerprint, runtime_kind, root_path, created_at, size_bytes, ref_count, last_hit_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			root_path = excluded.root_path,
			size_bytes = excluded.size_bytes,
			last_hit_at = excluded.last_hit_at
	`, row.Fingerprint, row.RuntimeKind, row.RootPath, row.CreatedAt, row.SizeBytes, row.RefCount, row.LastHitAt)
	if err != nil {
		return fmt.Errorf("db: upsert %s: %w", row.Fingerprint, err)
	}
	return nil
}

// Get looks up a CachedEnv by fingerprint. ok is false on a clean miss.
func (d *DB) Get(ctx context.Context, fingerprint string) (row CachedEnvRow, ok bool, err error) {
	r := d.conn.QueryRowContext(ctx, `
		SELECT fingerprint, runtime_kind, root_path, created_at, size_bytes, ref_count, last_hit_at
		FROM cached_envs WHERE fingerprint = ?
	`, fingerprint)
	err = r.Scan(&row.Fingerprint, &row.RuntimeKind, &row.RootPath, &row.CreatedAt, &row.SizeBytes, &row.RefCount, &row.LastHitAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedEnvRow{}, false, nil
	}
	if err != nil {
		return CachedEnvRow{}, false, fmt.Errorf("db: get %s: %w", fingerprint, err)
	}
	return row, true, nil
}

// TouchHit bumps last_hit_at to now, recording a cache hit for LRU recency
// ordering. It does not touch ref_count: that field counts rehydrations
// into sandboxes (IncRef has no matching decrement), not cache hits.
func (d *DB) TouchHit(ctx context.Context, fingerprint string, now time.Time) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE cached_envs SET last_hit_at = ? WHERE fingerprint = ?
	`, now.Unix(), fingerprint)
	if err != nil {
		return fmt.Errorf("db: touch %s: %w", fingerprint, err)
	}
	return nil
}

// IncRef increments ref_count, recording that one more sandbox now holds a
// rehydrated copy of this entry. evictIfOverBudget refuses to purge any
// entry with a nonzero ref_count.
func (d *DB) IncRef(ctx context.Context, fingerprint string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE cached_envs SET ref_count = ref_count + 1 WHERE fingerprint = ?
	`, fingerprint)
	if err != nil {
		return fmt.Errorf("db: incref %s: %w", fingerprint, err)
	}
	return nil
}

// Delete removes a CachedEnv row, used after the on-disk entry has been
// evicted or purged.
func (d *DB) Delete(ctx context.Context, fingerprint string) error {
	_, err := d.conn.ExecContext(ctx, `DELETE FROM cached_envs WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("db: delete %s: %w", fingerprint, err)
	}
	return nil
}

// ListByRecency returns all rows ordered oldest-hit-first, the order the
// eviction LRU walks when the cache exceeds its configured bound.
func (d *DB) ListByRecency(ctx context.Context) ([]CachedEnvRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT fingerprint, runtime_kind, root_path, created_at, size_bytes, ref_count, last_hit_at
		FROM cached_envs ORDER BY last_hit_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("db: list: %w", err)
	}
	defer rows.Close()

	var out []CachedEnvRow
	for rows.Next() {
		var row CachedEnvRow
		if err := rows.Scan(&row.Fingerprint, &row.RuntimeKind, &row.RootPath, &row.CreatedAt, &row.SizeBytes, &row.RefCount, &row.LastHitAt); err != nil {
			return nil, fmt.Errorf("db: list scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TotalBytes sums size_bytes across all entries, used to enforce
// CacheConfig.MaxBytes.
func (d *DB) TotalBytes(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := d.conn.QueryRowContext(ctx, `SELECT SUM(size_bytes) FROM cached_envs`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("db: total bytes: %w", err)
	}
	return total.Int64, nil
}

// Count returns the number of cached entries, used to enforce
// CacheConfig.MaxEntries.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_envs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count: %w", err)
	}
	return n, nil
}
