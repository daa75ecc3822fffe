// Package fileutil writes generated output atomically and clears the
// leftovers of earlier generation runs.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eunmann/bvbench/pkg/logging"
)

// TmpSuffix ends the name of every in-flight temporary file.
const TmpSuffix = ".tmp"

// Exists returns true if the file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsNonEmpty returns true if the file exists and has non-zero size. A unit
// killed before printing its header leaves an empty report.
func IsNonEmpty(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > 0
}

// tmpPattern names temporaries "<base>.<random>.tmp" so concurrent writers
// of the same directory never share a file.
func tmpPattern(outPath string) string {
	return filepath.Base(outPath) + ".*" + TmpSuffix
}

// WriteTmpThenMove reserves a temporary file in tmpDir, lets writeFunc
// fill it by path, syncs it and renames it over outPath. On failure the
// temporary is removed and outPath is untouched.
func WriteTmpThenMove(tmpDir, outPath string, writeFunc func(tmpPath string) error) (err error) {
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("create tmp dir: %w", err)
	}
	tmp, err := os.CreateTemp(tmpDir, tmpPattern(outPath))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err := writeFunc(tmpPath); err != nil {
		return err
	}
	if err := syncFile(tmpPath); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	return rename(tmpPath, outPath)
}

// WriteFile writes data to path through a temporary file in the same
// directory, so readers never observe a partial file.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, tmpPattern(path))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return rename(tmp.Name(), path)
}

func rename(tmpPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	err = f.Sync()
	f.Close()
	return err
}

// CleanupTmpFiles removes temporaries left under dir by an interrupted
// run and returns how many were removed. Unreadable subdirectories are
// skipped; a missing dir is not an error.
func CleanupTmpFiles(dir string) (int, error) {
	var removed int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		switch {
		case walkErr != nil && path == dir:
			return walkErr
		case walkErr != nil:
			return fs.SkipDir
		case d.IsDir() || !strings.HasSuffix(d.Name(), TmpSuffix):
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}

	if removed > 0 {
		logging.L().Debug().Int("files_removed", removed).Str("dir", dir).Msg("cleaned up tmp files")
	}
	return removed, err
}

// RemoveMatching removes every direct entry of dir whose name satisfies
// match, recursing into matched directories. A missing dir is not an error.
// It returns the number of entries removed.
func RemoveMatching(dir string, match func(name string, isDir bool) bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var removed int
	for _, e := range entries {
		if !match(e.Name(), e.IsDir()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}

	if removed > 0 {
		logging.L().Debug().Int("entries_removed", removed).Str("dir", dir).Msg("removed stale output")
	}
	return removed, nil
}
