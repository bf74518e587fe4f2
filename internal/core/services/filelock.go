package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// DefaultSettleTime is how long a landing file must go unmodified before it
// can be locked.
const DefaultSettleTime = 500 * time.Millisecond

// FileLock claims landing files by renaming them to <name>.ingesting.
// A rename is atomic on one filesystem, so a file is claimed at most once.
type FileLock struct {
	settle time.Duration
	now    func() time.Time
}

// NewFileLock creates a file lock. A settle time of zero locks files as soon
// as they are seen.
func NewFileLock(settle time.Duration, now func() time.Time) *FileLock {
	if now == nil {
		now = time.Now
	}
	return &FileLock{settle: settle, now: now}
}

// Acquire renames path to its locked name. It fails with
// domain.ErrLockNotAcquired while the file is still being written and with
// domain.ErrNotFound if the file is gone.
func (l *FileLock) Acquire(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", domain.ErrLockNotAcquired, path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", domain.ErrInvalidInput, path)
	}
	if age := l.now().Sub(info.ModTime()); l.settle > 0 && age < l.settle {
		return "", fmt.Errorf("%w: %s modified %s ago", domain.ErrLockNotAcquired, path, age.Round(time.Millisecond))
	}

	locked := path + domain.LockSuffix
	if _, err := os.Lstat(locked); err == nil {
		return "", fmt.Errorf("%w: %s already exists", domain.ErrLockNotAcquired, locked)
	}
	if err := os.Rename(path, locked); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: rename %s: %v", domain.ErrLockNotAcquired, path, err)
	}
	return locked, nil
}

// Release renames a locked file back to its landing name.
func (l *FileLock) Release(locked string) error {
	original := strings.TrimSuffix(locked, domain.LockSuffix)
	if original == locked {
		return fmt.Errorf("%w: %s is not a locked file", domain.ErrInvalidInput, locked)
	}
	if err := os.Rename(locked, original); err != nil {
		return fmt.Errorf("release %s: %w", locked, err)
	}
	return nil
}

// RecoverOrphans releases every locked file under root left behind by an
// interrupted run. Archive folders are not touched.
func (l *FileLock) RecoverOrphans(root string) (int, error) {
	recovered := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && (rel == domain.ProcessedDir || rel == domain.FailedDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, domain.LockSuffix) {
			return nil
		}
		original := strings.TrimSuffix(path, domain.LockSuffix)
		if _, statErr := os.Lstat(original); statErr == nil {
			logger.Warn("orphaned lock %s shadows an existing file; leaving it", path)
			return nil
		}
		if relErr := l.Release(path); relErr != nil {
			logger.Warn("recover %s: %v", path, relErr)
			return nil
		}
		recovered++
		return nil
	})
	if err != nil {
		return recovered, fmt.Errorf("recover orphaned locks: %w", err)
	}
	return recovered, nil
}

// moveFile moves src to dst, creating parent folders. An existing dst is
// never overwritten; a numeric suffix is added instead.
func moveFile(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	target := dst
	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext)
	for n := 1; ; n++ {
		if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
			break
		}
		target = base + "." + strconv.Itoa(n) + ext
	}
	if err := os.Rename(src, target); err != nil {
		return "", fmt.Errorf("move %s: %w", src, err)
	}
	return target, nil
}
