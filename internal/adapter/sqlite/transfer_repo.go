package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vertextoedge/planetdl/internal/domain"
)

// ErrTransferNotFound is returned when no journal row matches
var ErrTransferNotFound = errors.New("transfer not found")

// Begin records a transfer that has just started
func (s *Store) Begin(r *domain.TransferRecord) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Outcome == "" {
		r.Outcome = "running"
	}

	query := `
		INSERT INTO transfers (id, source, url, destination, total_bytes, outcome, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, r.ID, r.Source, r.URL, r.Destination, r.TotalBytes, r.Outcome, r.StartedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// Finish records the terminal outcome of a transfer
func (s *Store) Finish(r *domain.TransferRecord) error {
	var finished any
	if r.FinishedAt != nil {
		finished = r.FinishedAt.UTC()
	}

	query := `
		UPDATE transfers
		SET bytes_written = ?, total_bytes = ?, outcome = ?, last_error = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query, int64(r.BytesWritten), r.TotalBytes, r.Outcome, nullString(r.LastError), finished, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTransferNotFound
	}
	return nil
}

// Get retrieves a transfer by ID
func (s *Store) Get(id string) (*domain.TransferRecord, error) {
	query := `
		SELECT id, source, url, destination, bytes_written, total_bytes,
			   outcome, last_error, started_at, finished_at
		FROM transfers WHERE id = ?
	`
	r, err := scanTransfer(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	return r, err
}

// Recent returns the most recent transfers, newest first
func (s *Store) Recent(limit int) ([]*domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, source, url, destination, bytes_written, total_bytes,
			   outcome, last_error, started_at, finished_at
		FROM transfers
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransferRecord
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats summarises the journal
func (s *Store) Stats() (*domain.JournalStats, error) {
	stats := &domain.JournalStats{}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome NOT IN ('success', 'running') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(bytes_written), 0)
		FROM transfers
	`
	err := s.db.QueryRow(query).Scan(
		&stats.TotalTransfers, &stats.SuccessfulCount, &stats.FailedCount, &stats.TotalBytesLoaded)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row scanner) (*domain.TransferRecord, error) {
	r := &domain.TransferRecord{}
	var written int64
	var lastError sql.NullString
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Source, &r.URL, &r.Destination, &written, &r.TotalBytes,
		&r.Outcome, &lastError, &r.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	r.BytesWritten = uint64(written)
	if lastError.Valid {
		r.LastError = lastError.String
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Prune deletes finished transfers that started more than olderThan ago.
// Running rows are kept.
func (s *Store) Prune(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	result, err := s.db.Exec(`
		DELETE FROM transfers
		WHERE outcome != 'running' AND started_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transfers: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}
