package workspace_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/workspace"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/try"
)

func touch(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsage(t *testing.T) {
	t.Run("it sums regular files, recursively", func(t *testing.T) {
		root := t.TempDir()
		now := time.Now()
		touch(t, filepath.Join(root, "inputs.yaml"), 100, now)
		touch(t, filepath.Join(root, "results", "plot.png"), 2048, now)
		touch(t, filepath.Join(root, "results", "deep", "table.csv"), 52, now)

		usage := try.To(workspace.DiskUsage(root)).OrFatal(t)
		if usage != 2200 {
			t.Errorf("unexpected usage: 2200 != %d", usage)
		}
	})

	t.Run("it reports zero for an empty workspace", func(t *testing.T) {
		root := t.TempDir()
		usage := try.To(workspace.DiskUsage(root)).OrFatal(t)
		if usage != 0 {
			t.Errorf("unexpected usage: 0 != %d", usage)
		}
	})
}

func TestApply(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-10 * 24 * time.Hour)
	fresh := now.Add(-1 * 24 * time.Hour)

	t.Run("it removes matching files older than the rule", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "tmp", "scratch-1.dat"), 512, old)
		touch(t, filepath.Join(root, "tmp", "scratch-2.dat"), 256, fresh)
		touch(t, filepath.Join(root, "results", "plot.png"), 1024, old)

		reclaimed := try.To(workspace.Apply(
			root,
			[]domain.RetentionRule{{Pattern: "tmp/*.dat", Days: 7}},
			now,
		)).OrFatal(t)

		if reclaimed != 512 {
			t.Errorf("unexpected reclaimed bytes: 512 != %d", reclaimed)
		}
		if _, err := os.Stat(filepath.Join(root, "tmp", "scratch-1.dat")); !os.IsNotExist(err) {
			t.Error("expired file survived")
		}
		if _, err := os.Stat(filepath.Join(root, "tmp", "scratch-2.dat")); err != nil {
			t.Error("fresh file was removed")
		}
		if _, err := os.Stat(filepath.Join(root, "results", "plot.png")); err != nil {
			t.Error("unmatched file was removed")
		}
	})

	t.Run("it applies each rule independently", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "a.log"), 10, old)
		touch(t, filepath.Join(root, "b.cache"), 20, old)

		reclaimed := try.To(workspace.Apply(
			root,
			[]domain.RetentionRule{
				{Pattern: "*.log", Days: 7},
				{Pattern: "*.cache", Days: 3},
			},
			now,
		)).OrFatal(t)

		if reclaimed != 30 {
			t.Errorf("unexpected reclaimed bytes: 30 != %d", reclaimed)
		}
	})

	t.Run("it rejects a pattern escaping the workspace", func(t *testing.T) {
		root := t.TempDir()
		if _, err := workspace.Apply(
			root,
			[]domain.RetentionRule{{Pattern: "../*.dat", Days: 1}},
			now,
		); err == nil {
			t.Error("no error for an escaping pattern")
		}
	})

	t.Run("it leaves directories alone", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "tmp")
		touch(t, filepath.Join(dir, "keep.txt"), 5, fresh)
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatal(err)
		}

		if _, err := workspace.Apply(
			root,
			[]domain.RetentionRule{{Pattern: "tmp", Days: 7}},
			now,
		); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Error("directory was removed")
		}
	})
}
