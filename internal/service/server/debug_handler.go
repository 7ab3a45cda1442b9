package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/port"
)

// DebugHandler serves transfer history from the journal
type DebugHandler struct {
	journal port.TransferJournal
	logger  *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(journal port.TransferJournal, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		journal: journal,
		logger:  logger,
	}
}

type transferView struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	URL         string     `json:"url"`
	Destination string     `json:"destination"`
	Outcome     string     `json:"outcome"`
	Bytes       uint64     `json:"bytes_written"`
	Size        string     `json:"size"`
	Total       int64      `json:"total_bytes"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
}

func newTransferView(r *domain.TransferRecord) transferView {
	v := transferView{
		ID:          r.ID,
		Source:      r.Source,
		URL:         r.URL,
		Destination: r.Destination,
		Outcome:     r.Outcome,
		Bytes:       r.BytesWritten,
		Size:        humanize.IBytes(r.BytesWritten),
		Total:       r.TotalBytes,
		Error:       r.LastError,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	if d := r.Duration(); d > 0 {
		v.Duration = d.Round(time.Millisecond).String()
	}
	return v
}

// HandleStats handles journal statistics requests
func (h *DebugHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}

	stats, err := h.journal.Stats()
	if err != nil {
		h.logger.Error("failed to get journal stats", zap.Error(err))
		http.Error(w, "Failed to get journal stats", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"total_transfers": stats.TotalTransfers,
		"successful":      stats.SuccessfulCount,
		"failed":          stats.FailedCount,
		"bytes_loaded":    stats.TotalBytesLoaded,
		"loaded":          humanize.IBytes(uint64(stats.TotalBytesLoaded)),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleTransfers lists the most recent transfers. ?limit=N caps the list.
func (h *DebugHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.journal.Recent(limit)
	if err != nil {
		h.logger.Error("failed to list transfers", zap.Error(err))
		http.Error(w, "Failed to list transfers", http.StatusInternalServerError)
		return
	}

	views := make([]transferView, 0, len(records))
	for _, rec := range records {
		views = append(views, newTransferView(rec))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transfers": views,
		"count":     len(views),
	})
}

func (h *DebugHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if h.journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return false
	}
	return true
}
