package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Rehydrate recreates a cached dependency tree at destRoot from the cache
// entry at srcRoot using hardlinks, so a cache hit costs inode links
// instead of a full copy. Per file it falls back to a plain copy whenever
// linking fails for a reason that isn't specific to that one file path
// being wrong (cross-device cache root, filesystem without hard-link
// support, or a permission quirk) — exactly the NodeModulesCache hardlink-
// copy behavior this is grounded on. Files already present at destRoot
// are replaced.
func Rehydrate(srcRoot, destRoot string) error {
	return filepath.WalkDir(srcRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destRoot, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(dest, info.Mode().Perm())
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cache: replace %s: %w", rel, err)
		}
		if err := os.Link(path, dest); err != nil {
			if !linkUnsupported(err) {
				return fmt.Errorf("cache: hardlink %s: %w", rel, err)
			}
			info, statErr := d.Info()
			if statErr != nil {
				return statErr
			}
			if err := copyFile(path, dest, info.Mode().Perm()); err != nil {
				return fmt.Errorf("cache: fallback copy %s: %w", rel, err)
			}
		}
		return nil
	})
}

// linkUnsupported reports whether err indicates os.Link failed for a
// structural reason (cross-device, unsupported, permission) rather than a
// bug in the caller's paths, so Rehydrate knows when falling back to a
// plain copy is the right move instead of propagating the error.
func linkUnsupported(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(linkErr.Err, syscall.EXDEV) ||
		errors.Is(linkErr.Err, syscall.EPERM) ||
		errors.Is(linkErr.Err, syscall.ENOTSUP) ||
		errors.Is(linkErr.Err, syscall.EOPNOTSUPP) ||
		errors.Is(linkErr.Err, syscall.EMLINK)
}
