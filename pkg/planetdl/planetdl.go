// Package planetdl downloads OpenStreetMap extracts (the full planet,
// continents and countries) to local files with bounded memory.
//
// The package-level functions share one process-wide client that is created
// on first use. It reads planetdl.yaml, .env files and PLANETDL_*
// environment variables.
package planetdl

import (
	"context"
	"sync"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/logger"
	"github.com/vertextoedge/planetdl/internal/resolver"
)

// version is set at build time with
// -ldflags "-X github.com/vertextoedge/planetdl/pkg/planetdl.version=..."
var version = "dev"

var (
	defaultOnce   sync.Once
	defaultClient *Client
	defaultErr    error
)

// Version returns the library name and version
func Version() string {
	return "planetdl " + version
}

// UserAgent returns the HTTP user agent sent to mirrors
func UserAgent() string {
	return "planetdl/" + version
}

// Default returns the shared client, creating it on the first call. The
// shared client is never closed.
func Default() (*Client, error) {
	defaultOnce.Do(func() {
		opts, err := LoadOptions("")
		if err != nil {
			defaultErr = err
			return
		}
		opts.Logger = logger.L()
		defaultClient, defaultErr = NewClient(opts)
	})
	return defaultClient, defaultErr
}

// Init prepares the shared client. It is optional and idempotent; every
// other function initialises on demand.
func Init() Result {
	_, err := Default()
	return resultOf(err)
}

// Download fetches source into dest. An empty dest saves the canonical
// filename in the working directory; "-" writes to standard output.
func Download(source, dest string) Result {
	return DownloadWithProgress(source, dest, nil)
}

// DownloadWithProgress is Download with a progress callback
func DownloadWithProgress(source, dest string, onProgress func(downloaded, total uint64)) Result {
	if _, err := resolver.Filename(source); err != nil {
		return InvalidParameter
	}
	c, err := Default()
	if err != nil {
		return resultOf(err)
	}
	r, _ := c.DownloadContext(context.Background(), source, dest, onProgress)
	return r
}

// GetFilename returns the local filename a download of source is saved
// under. It performs no network access.
func GetFilename(source string) (string, error) {
	return resolver.Filename(source)
}

func resultOf(err error) Result {
	return mapKind(domain.KindOf(err))
}
