package indexer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the result of one indexing run, frozen for serving.
// It is built once and only read afterwards, so it can be shared without locking.
type Snapshot struct {
	RunID     uuid.UUID
	Account   string
	Mint      string
	Window    Window
	IndexedAt time.Time
	PageLimit int
	PageFull  bool
	Skipped   int
	// Err is the run-fatal error message when indexing failed and the
	// snapshot fell back to empty.
	Err string

	transfers []Transfer
}

// NewSnapshot freezes res. A nil res yields an empty snapshot.
func NewSnapshot(req Request, res *Result, indexedAt time.Time) *Snapshot {
	s := &Snapshot{
		RunID:     uuid.New(),
		Account:   req.Account,
		Mint:      req.Mint,
		Window:    Window{Start: req.Window.Start.UTC(), End: req.Window.End.UTC()},
		IndexedAt: indexedAt.UTC(),
		transfers: []Transfer{},
	}
	if res != nil {
		s.PageLimit = res.PageLimit
		s.PageFull = res.PageFull
		s.Skipped = len(res.Skipped)
		s.transfers = slices.Clone(res.Transfers)
		if s.transfers == nil {
			s.transfers = []Transfer{}
		}
	}
	return s
}

// Transfers returns a copy of the snapshot's transfers in listing order.
func (s *Snapshot) Transfers() []Transfer {
	return slices.Clone(s.transfers)
}

// Len returns the number of transfers.
func (s *Snapshot) Len() int { return len(s.transfers) }

// Degraded reports whether the run failed and the snapshot is empty as a fallback.
func (s *Snapshot) Degraded() bool { return s.Err != "" }

// BuildSnapshot runs the indexer once. Any run-fatal error is logged and turned into
// an empty snapshot carrying the error message, so the caller can always serve.
func BuildSnapshot(ctx context.Context, ix *Indexer, req Request, logger *slog.Logger) *Snapshot {
	res, err := ix.Index(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "error indexing transfers, serving empty snapshot",
			"wallet", req.Account,
			"mint", req.Mint,
			"error", err,
		)
		snap := NewSnapshot(req, nil, time.Now())
		snap.PageLimit = ix.Options().PageLimit
		snap.Err = err.Error()
		return snap
	}

	snap := NewSnapshot(req, res, time.Now())
	if ix.metrics != nil {
		ix.metrics.SetSnapshotTransfers(req.Account, snap.Len())
	}
	return snap
}
