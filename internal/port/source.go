package port

import (
	"context"
	"io"
)

// SourceMetadata is what a HEAD probe learned about a remote file
type SourceMetadata struct {
	Size           int64 // -1 if unknown
	AcceptRanges   bool
	RemoteFilename string // from Content-Disposition, may be empty
}

// Stream is an open byte stream from a source
type Stream struct {
	Body          io.ReadCloser
	ContentLength int64 // -1 if unknown
}

// Source defines the interface for fetching remote bytes
type Source interface {
	// Probe fetches metadata without downloading the body.
	// Missing metadata is not an error.
	Probe(ctx context.Context, url string) (*SourceMetadata, error)

	// Open starts streaming the body. The caller must close Body.
	Open(ctx context.Context, url string) (*Stream, error)
}
