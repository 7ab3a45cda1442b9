package planetdl

import (
	"context"
	"errors"

	"github.com/vertextoedge/planetdl/internal/adapter/blobstore"
	"github.com/vertextoedge/planetdl/internal/adapter/filesystem"
	"github.com/vertextoedge/planetdl/internal/port"
)

var errNoLocalVolume = errors.New("destination is not on a local volume")

// sinkRouter sends bucket URLs to object storage and everything else to
// the local filesystem.
type sinkRouter struct {
	files *filesystem.Manager
	blobs *blobstore.Factory
}

var (
	_ port.SinkFactory  = (*sinkRouter)(nil)
	_ port.SpaceChecker = (*sinkRouter)(nil)
)

func (r *sinkRouter) Create(ctx context.Context, dest string) (port.Sink, error) {
	if blobstore.IsURL(dest) {
		return r.blobs.Create(ctx, dest)
	}
	return r.files.Create(ctx, dest)
}

func (r *sinkRouter) DiskUsage(dest string) (*port.DiskUsage, error) {
	if dest == filesystem.StdoutDest || blobstore.IsURL(dest) {
		return nil, errNoLocalVolume
	}
	return r.files.DiskUsage(dest)
}
