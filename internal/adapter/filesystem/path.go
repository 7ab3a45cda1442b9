package filesystem

import (
	"os"
	"path/filepath"
)

// existingParent walks up from path's directory to the closest directory
// that exists, so disk usage can be checked before anything is created.
func existingParent(path string) string {
	dir := filepath.Dir(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// reclaimable returns the size of an existing regular file at dest that
// Create would truncate, or 0.
func (m *Manager) reclaimable(dest string) uint64 {
	if m.overwrite != OverwriteTruncate {
		return 0
	}
	info, err := os.Stat(dest)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return uint64(info.Size())
}
