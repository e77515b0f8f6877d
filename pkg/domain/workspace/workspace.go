package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
)

// DiskUsage sums the sizes of regular files under root.
//
// A workspace concurrently written to gives a best-effort figure; files
// vanishing mid-walk are skipped, not an error.
func DiskUsage(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Apply purges files under root matching each rule's glob pattern whose
// modification time is older than the rule's age, measured from now.
//
// It returns the number of bytes reclaimed. Patterns are relative to
// root; a pattern escaping root is rejected.
func Apply(root string, rules []domain.RetentionRule, now time.Time) (int64, error) {
	var reclaimed int64
	for _, rule := range rules {
		pattern := filepath.Join(root, rule.Pattern)
		rel, err := filepath.Rel(root, pattern)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return reclaimed, errors.New("retention pattern escapes the workspace: " + rule.Pattern)
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return reclaimed, err
		}

		deadline := now.Add(-time.Duration(rule.Days) * 24 * time.Hour)
		for _, match := range matches {
			info, err := os.Lstat(match)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return reclaimed, err
			}
			if !info.Mode().IsRegular() || !info.ModTime().Before(deadline) {
				continue
			}
			if err := os.Remove(match); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return reclaimed, err
			}
			reclaimed += info.Size()
		}
	}
	return reclaimed, nil
}

// Remove deletes the whole workspace directory.
//
// A workspace already gone is not an error.
func Remove(root string) error {
	return os.RemoveAll(root)
}
