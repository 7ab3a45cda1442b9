package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/port"
)

// StdoutDest is the destination that streams to standard output
const StdoutDest = "-"

// OverwritePolicy decides what happens to an existing destination file
type OverwritePolicy string

// Overwrite policies
const (
	OverwriteTruncate OverwritePolicy = "truncate"
	OverwriteNever    OverwritePolicy = "never"
)

// Manager opens local file sinks and reports disk usage
type Manager struct {
	overwrite OverwritePolicy
	stdout    io.Writer
	logger    *zap.Logger
}

// Ensure Manager implements the sink and space ports
var (
	_ port.SinkFactory  = (*Manager)(nil)
	_ port.SpaceChecker = (*Manager)(nil)
)

// NewManager creates a new filesystem manager
func NewManager(overwrite OverwritePolicy, logger *zap.Logger) *Manager {
	if overwrite == "" {
		overwrite = OverwriteTruncate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		overwrite: overwrite,
		stdout:    os.Stdout,
		logger:    logger,
	}
}

// Create opens dest for writing. An advisory lock on dest+".lock" keeps two
// transfers from writing the same file; the loser fails immediately. The
// parent directory must already exist.
func (m *Manager) Create(ctx context.Context, dest string) (port.Sink, error) {
	if dest == StdoutDest {
		return NewWriterSink(m.stdout), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewTransferError(domain.OutcomeCancelled, "create sink", fmt.Errorf("%w: %v", domain.ErrCancelled, err))
	}

	lock := flock.New(dest + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ioError("lock destination", err)
	}
	if !locked {
		return nil, ioError("lock destination", fmt.Errorf("%w: %s", domain.ErrDestinationBusy, dest))
	}

	if m.overwrite == OverwriteNever {
		if _, err := os.Stat(dest); err == nil {
			releaseLock(lock)
			return nil, ioError("create sink", fmt.Errorf("%w: %s", domain.ErrDestinationExists, dest))
		}
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		releaseLock(lock)
		return nil, ioError("create sink", err)
	}

	m.logger.Debug("opened destination", zap.String("dest", dest))

	return &FileSink{f: f, lock: lock, path: dest}, nil
}

// EnsureDir ensures the directory for a file path exists. Only the
// configured output directory is created this way.
func EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}
	return nil
}

// Exists reports whether a file exists at path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileSink writes to a local file
type FileSink struct {
	f    *os.File
	lock *flock.Flock
	path string

	once sync.Once
	err  error
}

// Ensure FileSink implements port.Sink
var _ port.Sink = (*FileSink)(nil)

// Path returns the destination path
func (s *FileSink) Path() string {
	return s.path
}

// Write writes p to the file
func (s *FileSink) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	if err != nil {
		return n, ioError("write", err)
	}
	return n, nil
}

// Commit flushes the file to stable storage and releases it
func (s *FileSink) Commit() error {
	s.once.Do(func() {
		if err := s.f.Sync(); err != nil {
			s.f.Close()
			s.err = ioError("sync", err)
		} else if err := s.f.Close(); err != nil {
			s.err = ioError("close", err)
		}
		releaseLock(s.lock)
	})
	return s.err
}

// Abort releases the file. The partial file is left on disk.
func (s *FileSink) Abort() error {
	s.once.Do(func() {
		if err := s.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.err = ioError("close", err)
		}
		releaseLock(s.lock)
	})
	return s.err
}

// WriterSink writes to an arbitrary writer it does not own, such as stdout
type WriterSink struct {
	w io.Writer
}

// NewWriterSink creates a sink over w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write writes p to the underlying writer
func (s *WriterSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, ioError("write", err)
	}
	return n, nil
}

// Commit flushes the writer if it supports it
func (s *WriterSink) Commit() error {
	if f, ok := s.w.(interface{ Sync() error }); ok {
		// Sync fails on pipes and terminals; that is not a transfer error.
		f.Sync()
	}
	return nil
}

// Abort does nothing; the writer is owned by the caller
func (s *WriterSink) Abort() error {
	return nil
}

// releaseLock unlocks but keeps the lock file. Removing it would let a
// waiter holding the old inode and a newcomer creating a fresh one both
// acquire the lock.
func releaseLock(lock *flock.Flock) {
	lock.Unlock()
}

func ioError(op string, err error) error {
	var te *domain.TransferError
	if errors.As(err, &te) {
		return err
	}
	return domain.NewTransferError(domain.OutcomeIOFailure, op, fmt.Errorf("%w: %w", domain.ErrIO, err))
}
