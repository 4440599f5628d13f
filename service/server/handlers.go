package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/transferindex/service/indexer"
)

// Response metadata headers. The body of the transfer routes stays a bare array.
const (
	HeaderRunID       = "X-Index-Run-Id"
	HeaderWindowStart = "X-Index-Window-Start"
	HeaderWindowEnd   = "X-Index-Window-End"
	HeaderPageLimit   = "X-Index-Page-Limit"
	HeaderPageFull    = "X-Index-Page-Full"
	HeaderBestEffort  = "X-Index-Best-Effort"
	HeaderError       = "X-Index-Error"

	// bestEffortValue says only the newest signature page was examined.
	bestEffortValue = "most-recent-page-only"
)

var exposedHeaders = strings.Join([]string{
	HeaderRunID, HeaderWindowStart, HeaderWindowEnd,
	HeaderPageLimit, HeaderPageFull, HeaderBestEffort, HeaderError,
}, ", ")

const maxListLimit = 10000

// handleListTransfers returns a handler that lists the snapshot's transfers.
// GET / and GET /api/v1/transfers?transfer_type=Sent|Received&limit=N
//
// The body is always a JSON array, [] when nothing was indexed or the run failed.
func handleListTransfers(snap *indexer.Snapshot, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var direction *indexer.Direction
		if v := query.Get("transfer_type"); v != "" {
			d, err := indexer.ParseDirection(v)
			if err != nil {
				writeError(w, "invalid transfer_type parameter: must be Sent or Received", http.StatusBadRequest)
				return
			}
			direction = &d
		}

		limit := 0
		if limitStr := query.Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsed < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsed > maxListLimit {
				writeError(w, "limit cannot exceed 10000", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		transfers := filterTransfers(snap.Transfers(), direction, limit)

		logger.Debug("transfers listed",
			"run_id", snap.RunID,
			"count", len(transfers),
			"total", snap.Len(),
		)

		writeSnapshotHeaders(w, snap)
		writeJSON(w, transfers, http.StatusOK)
	})
}

// filterTransfers keeps listing order. A zero limit means no limit.
func filterTransfers(transfers []indexer.Transfer, direction *indexer.Direction, limit int) []indexer.Transfer {
	out := make([]indexer.Transfer, 0, len(transfers))
	for _, t := range transfers {
		if direction != nil && t.Direction != *direction {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// snapshotResponse is the JSON response format for GET /api/v1/snapshot.
type snapshotResponse struct {
	RunID       string             `json:"run_id"`
	Wallet      string             `json:"wallet_address"`
	Mint        string             `json:"token_mint"`
	WindowStart time.Time          `json:"window_start"`
	WindowEnd   time.Time          `json:"window_end"`
	IndexedAt   time.Time          `json:"indexed_at"`
	PageLimit   int                `json:"page_limit"`
	PageFull    bool               `json:"page_full"`
	BestEffort  string             `json:"best_effort"`
	Skipped     int                `json:"skipped"`
	Error       string             `json:"error,omitempty"`
	Count       int                `json:"count"`
	Transfers   []indexer.Transfer `json:"transfers"`
}

// handleGetSnapshot returns a handler that describes the snapshot with its transfers.
// GET /api/v1/snapshot
func handleGetSnapshot(snap *indexer.Snapshot, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transfers := snap.Transfers()
		resp := snapshotResponse{
			RunID:       snap.RunID.String(),
			Wallet:      snap.Account,
			Mint:        snap.Mint,
			WindowStart: snap.Window.Start,
			WindowEnd:   snap.Window.End,
			IndexedAt:   snap.IndexedAt,
			PageLimit:   snap.PageLimit,
			PageFull:    snap.PageFull,
			BestEffort:  bestEffortValue,
			Skipped:     snap.Skipped,
			Error:       snap.Err,
			Count:       len(transfers),
			Transfers:   transfers,
		}

		logger.Debug("snapshot described", "run_id", snap.RunID)

		writeSnapshotHeaders(w, snap)
		writeJSON(w, resp, http.StatusOK)
	})
}

func writeSnapshotHeaders(w http.ResponseWriter, snap *indexer.Snapshot) {
	h := w.Header()
	h.Set(HeaderRunID, snap.RunID.String())
	h.Set(HeaderWindowStart, snap.Window.Start.Format(time.RFC3339))
	h.Set(HeaderWindowEnd, snap.Window.End.Format(time.RFC3339))
	h.Set(HeaderPageLimit, strconv.Itoa(snap.PageLimit))
	h.Set(HeaderPageFull, strconv.FormatBool(snap.PageFull))
	h.Set(HeaderBestEffort, bestEffortValue)
	if snap.Degraded() {
		h.Set(HeaderError, snap.Err)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
