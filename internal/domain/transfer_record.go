package domain

import "time"

// TransferRecord is one row of the transfer journal
type TransferRecord struct {
	ID          string
	Source      string
	URL         string
	Destination string

	// Progress
	BytesWritten uint64
	TotalBytes   int64

	// Result
	Outcome   string
	LastError string

	// Timestamps
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Finish records the terminal outcome of the transfer
func (r *TransferRecord) Finish(o Outcome) {
	now := time.Now()
	r.FinishedAt = &now
	r.BytesWritten = o.BytesWritten
	r.Outcome = o.Kind.String()
	if o.Err != nil {
		r.LastError = o.Err.Error()
	}
}

// Duration returns how long the transfer took, or zero if it is still running
func (r *TransferRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// JournalStats summarises the transfer journal
type JournalStats struct {
	TotalTransfers   int
	SuccessfulCount  int
	FailedCount      int
	TotalBytesLoaded int64
}
