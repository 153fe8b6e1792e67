package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jaco00/media-transcode/core/task"
	"github.com/jaco00/media-transcode/internal/fsx"
)

// promote renames the temp output into place. The check-then-rename
// pair runs under one mutex so two workers promoting toward the same
// final path cannot both pass the occupancy check; the loser lands on
// a conflict name instead of overwriting.
func (e *Executor) promote(t *task.Task) (finalPath string, conflicted bool, err error) {
	e.promoteMu.Lock()
	defer e.promoteMu.Unlock()

	target := t.FinalOutputPath
	if fsx.Exists(target) {
		target = conflictPath(target)
		conflicted = true
		e.logger.Warn("final path occupied, using conflict name",
			zap.String("file", t.RelPath),
			zap.String("conflict", filepath.Base(target)))
	}
	if err := os.Rename(t.TempOutputPath, target); err != nil {
		return "", false, fmt.Errorf("promote output: %w", err)
	}
	_ = fsx.SyncDir(filepath.Dir(target))
	return target, conflicted, nil
}

// conflictPath builds conflict_<timestamp>_<name> next to the final
// path. Called under promoteMu, so probing for a free name is safe.
func conflictPath(final string) string {
	dir := filepath.Dir(final)
	name := filepath.Base(final)
	candidate := filepath.Join(dir, fmt.Sprintf("conflict_%d_%s", time.Now().Unix(), name))
	for fsx.Exists(candidate) {
		candidate = filepath.Join(dir, fmt.Sprintf("conflict_%d_%s", time.Now().UnixNano(), name))
	}
	return candidate
}

// finalize moves or deletes the source, strictly after the output is
// durable. A failure here leaves both files on disk: the caller turns
// it into a failed result without undoing the promotion.
func (e *Executor) finalize(t *task.Task) error {
	switch {
	case t.BackupPath != "":
		e.backupMu.Lock()
		defer e.backupMu.Unlock()
		if err := fsx.EnsureDir(filepath.Dir(t.BackupPath)); err != nil {
			return fmt.Errorf("backup dir: %w", err)
		}
		if err := fsx.Move(t.SourcePath, t.BackupPath); err != nil {
			return fmt.Errorf("backup source: %w", err)
		}
	case e.opts.DeleteSource:
		if err := os.Remove(t.SourcePath); err != nil {
			return fmt.Errorf("delete source: %w", err)
		}
	}
	return nil
}
