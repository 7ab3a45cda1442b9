package port

import (
	"github.com/vertextoedge/planetdl/internal/domain"
)

// TransferJournal defines the interface for persisting transfer history
type TransferJournal interface {
	// Begin records a transfer that has just started
	Begin(record *domain.TransferRecord) error

	// Finish records the terminal outcome of a transfer
	Finish(record *domain.TransferRecord) error

	// Get retrieves a transfer by ID
	Get(id string) (*domain.TransferRecord, error)

	// Recent returns the most recent transfers, newest first
	Recent(limit int) ([]*domain.TransferRecord, error)

	// Stats summarises the journal
	Stats() (*domain.JournalStats, error)

	// Ping checks the journal connectivity
	Ping() error

	// Close releases the journal
	Close() error
}
