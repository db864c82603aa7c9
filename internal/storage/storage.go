// Package storage writes output files atomically with retries.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/tablemap/tablemap/internal/logger"
)

var Logger = logger.GetLogger("storage")

const DefaultAttempts = 3

// WriteFileAtomic writes data to a sibling temp file and renames it over path,
// so readers see either the old file or the complete new one. Failed attempts
// are retried up to attempts times.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, attempts int) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	return retry.Do(
		func() error { return writeOnce(path, data, perm) },
		retry.Attempts(uint(attempts)),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			Logger.Warn("write failed, retrying", "path", path, "attempt", n+1, "err", err)
		}),
	)
}

func writeOnce(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
