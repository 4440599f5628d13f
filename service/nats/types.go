package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/transferindex/service/indexer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferEvent represents a transfer published to NATS.
// This is published to the subject "transfers.{wallet_address}" in JetStream.
type TransferEvent struct {
	// Run that produced the transfer
	RunID uuid.UUID `json:"run_id"`

	// Transfer identifiers
	Signature string `json:"signature"`
	Index     int    `json:"index"` // position within the transaction's transfers

	// Wallet information
	WalletAddress string `json:"wallet_address"`
	TokenMint     string `json:"token_mint"`

	// Transfer details
	Amount       decimal.Decimal `json:"amount"`
	TransferType string          `json:"transfer_type"`
	BlockTime    time.Time       `json:"block_time"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// Key identifies the event across repeated publishes of the same run.
func (e *TransferEvent) Key() string {
	return fmt.Sprintf("%s:%s:%d", e.RunID, e.Signature, e.Index)
}

// FromTransfer converts an indexed transfer to a TransferEvent for publishing.
func FromTransfer(runID uuid.UUID, wallet, mint string, index int, t indexer.Transfer) *TransferEvent {
	return &TransferEvent{
		RunID:         runID,
		Signature:     t.Signature,
		Index:         index,
		WalletAddress: wallet,
		TokenMint:     mint,
		Amount:        t.Amount,
		TransferType:  t.Direction.String(),
		BlockTime:     t.Date.UTC(),
		PublishedAt:   time.Now().UTC(),
	}
}

// EventsFromSnapshot converts every transfer in snap, preserving order.
// Index counts transfers sharing a signature, starting at zero.
func EventsFromSnapshot(snap *indexer.Snapshot) []*TransferEvent {
	transfers := snap.Transfers()
	events := make([]*TransferEvent, 0, len(transfers))
	seen := make(map[string]int)
	for _, t := range transfers {
		idx := seen[t.Signature]
		seen[t.Signature] = idx + 1
		events = append(events, FromTransfer(snap.RunID, snap.Account, snap.Mint, idx, t))
	}
	return events
}

// PublishSnapshot publishes every transfer of snap once. A degraded or empty
// snapshot publishes nothing.
func PublishSnapshot(ctx context.Context, pub Publisher, snap *indexer.Snapshot, logger *slog.Logger) (int, error) {
	if snap.Degraded() || snap.Len() == 0 {
		logger.Info("nothing to publish",
			"run_id", snap.RunID,
			"degraded", snap.Degraded(),
		)
		return 0, nil
	}

	published, err := pub.PublishTransferBatch(ctx, EventsFromSnapshot(snap))
	if err != nil {
		return published, fmt.Errorf("failed to publish snapshot: %w", err)
	}

	logger.Info("published snapshot transfers",
		"run_id", snap.RunID,
		"wallet", snap.Account,
		"published", published,
		"total", snap.Len(),
	)
	return published, nil
}
