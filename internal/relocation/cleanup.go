package relocation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vmunix/animarr/internal/sidecar"
)

// migrateSidecars moves external subtitle files alongside the primary file,
// renaming their stems to match. Best-effort: failures are logged and never
// propagate.
func (e *Engine) migrateSidecars(oldVideoPath, newVideoPath string) {
	subs, err := sidecar.Find(oldVideoPath)
	if err != nil {
		e.log.Warn("sidecar discovery failed", "path", oldVideoPath, "error", err)
		return
	}

	oldStem := strings.TrimSuffix(filepath.Base(oldVideoPath), filepath.Ext(oldVideoPath))
	newStem := strings.TrimSuffix(filepath.Base(newVideoPath), filepath.Ext(newVideoPath))
	newDir := filepath.Dir(newVideoPath)

	for _, sub := range subs {
		name := filepath.Base(sub)
		dest := filepath.Join(newDir, newStem+strings.TrimPrefix(name, oldStem))

		e.guard.Add(sub)
		e.guard.Add(dest)
		err := moveFile(sub, dest)
		e.guard.Remove(sub)
		e.guard.Remove(dest)
		if err != nil {
			e.log.Warn("sidecar migration failed", "from", sub, "to", dest, "error", err)
			continue
		}
		e.log.Debug("sidecar migrated", "from", sub, "to", dest)
	}
}

// cleanupEmptyDirs removes now-empty directories from startDir upward,
// stopping at (and never deleting) the managed folder root. A directory whose
// absolute path matches an exclusion pattern ends the walk, so writing a
// pattern that matches a subtree protects everything below it.
func (e *Engine) cleanupEmptyDirs(root, startDir string) {
	root = filepath.Clean(root)
	dir := filepath.Clean(startDir)

	for dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		if e.cleanupExcluded(dir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}

		e.guard.Add(dir)
		rmErr := os.Remove(dir)
		e.guard.Remove(dir)
		if rmErr != nil {
			e.log.Warn("empty directory cleanup failed", "dir", dir, "error", rmErr)
			return
		}
		e.log.Debug("removed empty directory", "dir", dir)
		dir = filepath.Dir(dir)
	}
}

func (e *Engine) cleanupExcluded(dir string) bool {
	for _, pattern := range e.cfg.CleanupExcludePatterns {
		if pattern.MatchString(dir) {
			return true
		}
	}
	return false
}
