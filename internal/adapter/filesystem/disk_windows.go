//go:build windows

package filesystem

import (
	"errors"

	"github.com/vertextoedge/planetdl/internal/port"
)

// DiskUsage is not implemented on Windows; callers skip the space check
func (m *Manager) DiskUsage(dest string) (*port.DiskUsage, error) {
	return nil, errors.New("disk usage not supported on windows")
}
