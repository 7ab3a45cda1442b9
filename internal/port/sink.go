package port

import "context"

// Sink receives the bytes of one transfer in order
type Sink interface {
	// Write writes p synchronously and returns the number of bytes accepted
	Write(p []byte) (int, error)

	// Commit finalises a successful transfer
	Commit() error

	// Abort discards what can be discarded after a failed transfer.
	// It is safe to call after Commit, in which case it does nothing.
	Abort() error
}

// SinkFactory opens sinks for destinations
type SinkFactory interface {
	// Create opens the destination for writing. An existing destination is
	// truncated unless the factory was configured otherwise.
	Create(ctx context.Context, dest string) (Sink, error)
}
