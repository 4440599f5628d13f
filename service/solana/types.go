package solana

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignatureInfo is one entry of a GetSignaturesForAddress page.
// BlockTime is nil when the node did not report a commit time.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time
	Err       *string // nil if transaction succeeded
}

// TransactionRecord is a fetched transaction reduced to what the indexer reads.
// This is our domain model, independent of the RPC response format.
type TransactionRecord struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time
	Meta      *TransactionMeta // nil when the node returned no metadata
}

// TransactionMeta holds the token balance snapshots of a transaction.
type TransactionMeta struct {
	Err               *string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TokenBalance is an owner's balance of one mint in one token account,
// immediately before or after a transaction.
type TokenBalance struct {
	AccountIndex uint16
	Owner        string
	Mint         string
	Amount       string // raw base units as reported by the node
	Decimals     uint8
	UIAmount     *decimal.Decimal // nil when the node did not supply a scaled amount
}
