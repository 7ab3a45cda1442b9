package blobstore

import (
	"context"
	"sync"

	"gocloud.dev/blob"

	"github.com/vertextoedge/planetdl/internal/port"
)

// Sink streams one object upload
type Sink struct {
	w      *blob.Writer
	cancel context.CancelFunc
	key    string

	once sync.Once
	err  error
}

// Ensure Sink implements port.Sink
var _ port.Sink = (*Sink)(nil)

// Key returns the object key
func (s *Sink) Key() string {
	return s.key
}

// Write buffers p into the upload
func (s *Sink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, ioError("write", err)
	}
	return n, nil
}

// Commit completes the upload and makes the object visible
func (s *Sink) Commit() error {
	s.once.Do(func() {
		if err := s.w.Close(); err != nil {
			s.err = ioError("commit upload", err)
		}
		s.cancel()
	})
	return s.err
}

// Abort cancels the upload; no object is created
func (s *Sink) Abort() error {
	s.once.Do(func() {
		s.cancel()
		s.w.Close()
	})
	return nil
}
