//go:build !windows

package filesystem

import (
	"fmt"
	"syscall"

	"github.com/vertextoedge/planetdl/internal/port"
)

// DiskUsage returns disk usage for the volume that will hold dest. Free
// includes the blocks of an existing dest that truncation will release.
func (m *Manager) DiskUsage(dest string) (*port.DiskUsage, error) {
	dir := existingParent(dest)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - free
	free += m.reclaimable(dest)
	if free > total {
		free = total
	}

	usage := &port.DiskUsage{
		Total: total,
		Used:  used,
		Free:  free,
	}
	if total > 0 {
		usage.UsedPct = float64(used) / float64(total) * 100
	}
	return usage, nil
}
