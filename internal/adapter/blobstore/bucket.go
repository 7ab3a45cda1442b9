// Package blobstore implements sinks that upload extracts to object storage
// through gocloud.dev/blob. Destinations are URLs such as
// s3://bucket/osm/europe-latest.osm.pbf?region=eu-central-1,
// gs://bucket/planet.pbf or file:///srv/mirror/planet.pbf.
package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/port"
)

// IsURL reports whether dest names an object-store destination
func IsURL(dest string) bool {
	scheme, rest, ok := strings.Cut(dest, "://")
	return ok && scheme != "" && rest != "" && !strings.ContainsAny(scheme, `/\.`)
}

// ParseDestination splits dest into the bucket URL and the object key.
// For file:// URLs the last path element is the key and the rest is the
// bucket directory.
func ParseDestination(dest string) (bucketURL, key string, err error) {
	u, err := url.Parse(dest)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid destination URL: %v", domain.ErrInvalidInput, err)
	}
	if u.Scheme == "" {
		return "", "", fmt.Errorf("%w: destination %q has no scheme", domain.ErrInvalidInput, dest)
	}

	if u.Scheme == "file" {
		dir, name := splitLast(u.Path)
		if name == "" {
			return "", "", fmt.Errorf("%w: destination %q has no object key", domain.ErrInvalidInput, dest)
		}
		b := *u
		b.Path = dir
		return b.String(), name, nil
	}

	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: destination %q has no object key", domain.ErrInvalidInput, dest)
	}
	b := *u
	b.Path = ""
	return b.String(), key, nil
}

func splitLast(p string) (string, string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	dir := p[:i]
	if dir == "" {
		dir = "/"
	}
	return dir, p[i+1:]
}

// Factory opens upload sinks. Buckets are opened lazily per bucket URL and
// reused for later transfers.
type Factory struct {
	overwrite bool
	logger    *zap.Logger

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
	owned   map[string]bool
}

// Ensure Factory implements port.SinkFactory
var _ port.SinkFactory = (*Factory)(nil)

// NewFactory creates a new Factory. When overwrite is false an existing
// object fails the transfer before any upload starts.
func NewFactory(overwrite bool, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		overwrite: overwrite,
		logger:    logger,
		buckets:   make(map[string]*blob.Bucket),
		owned:     make(map[string]bool),
	}
}

// Register makes an already opened bucket available under bucketURL. The
// caller keeps ownership of b.
func (f *Factory) Register(bucketURL string, b *blob.Bucket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucketURL] = b
	f.owned[bucketURL] = false
}

// Create opens an upload for dest
func (f *Factory) Create(ctx context.Context, dest string) (port.Sink, error) {
	bucketURL, key, err := ParseDestination(dest)
	if err != nil {
		return nil, domain.NewTransferError(domain.OutcomeInvalidInput, "parse destination", err)
	}

	bucket, err := f.bucket(ctx, bucketURL)
	if err != nil {
		return nil, ioError("open bucket", err)
	}

	if !f.overwrite {
		exists, err := bucket.Exists(ctx, key)
		if err != nil {
			return nil, ioError("stat object", err)
		}
		if exists {
			return nil, ioError("create sink", fmt.Errorf("%w: %s", domain.ErrDestinationExists, dest))
		}
	}

	// Cancelling wctx before Close aborts the upload.
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w, err := bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		cancel()
		return nil, ioError("open writer", err)
	}

	f.logger.Debug("opened object upload",
		zap.String("bucket", bucketURL),
		zap.String("key", key))

	return &Sink{w: w, cancel: cancel, key: key}, nil
}

func (f *Factory) bucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.buckets[bucketURL]; ok {
		return b, nil
	}

	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	f.buckets[bucketURL] = b
	f.owned[bucketURL] = true
	return b, nil
}

// Close closes every bucket the factory opened itself
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for u, b := range f.buckets {
		if !f.owned[u] {
			continue
		}
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.buckets = make(map[string]*blob.Bucket)
	f.owned = make(map[string]bool)
	return firstErr
}

func ioError(op string, err error) error {
	return domain.NewTransferError(domain.OutcomeIOFailure, op, fmt.Errorf("%w: %w", domain.ErrIO, err))
}
