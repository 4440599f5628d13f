package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/transferindex/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// MaxSignaturePageSize is the largest page GetSignaturesForAddress will return.
const MaxSignaturePageSize = 1000

// ErrTransactionNotFound is returned when the node has no record of a signature.
var ErrTransactionNotFound = errors.New("transaction not found")

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client exposes the two ledger reads the indexer depends on.
// It wraps the RPC client with domain types, per-call timeouts, metrics and logging.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
	timeout  time.Duration
}

// NewClient creates a new Solana client.
// A zero timeout disables the per-call deadline. If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// ListSignatures returns a single page of the most recent signatures for address,
// newest first. There is no continuation: anything older than the page is not reachable
// through this call. limit is clamped to [1, MaxSignaturePageSize].
func (c *Client) ListSignatures(
	ctx context.Context,
	address Address,
	limit int,
	commitment rpc.CommitmentType,
) ([]SignatureInfo, error) {
	if address.IsZero() {
		return nil, fmt.Errorf("%w: zero address", ErrMalformedAddress)
	}
	limit = clampLimit(limit)

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: commitment,
	}

	c.logger.DebugContext(ctx, "calling GetSignaturesForAddress",
		"address", address.String(),
		"limit", limit,
		"commitment", commitment,
	)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, address.PublicKey(), opts)
	c.recordCall("GetSignaturesForAddress", err, time.Since(start))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"address", address.String(),
			"error", err,
		)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))
	}

	out := make([]SignatureInfo, 0, len(signatures))
	for _, sig := range signatures {
		if sig == nil {
			continue
		}
		out = append(out, signatureToDomain(sig))
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"address", address.String(),
		"count", len(out),
		"page_full", len(out) >= limit,
	)

	return out, nil
}

// GetTransaction fetches one transaction by signature.
// It returns ErrTransactionNotFound if the node has no such transaction.
func (c *Client) GetTransaction(
	ctx context.Context,
	signature string,
	encoding solana.EncodingType,
) (*TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	if encoding == "" {
		encoding = solana.EncodingBase64
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	// Fetch with support for versioned transactions
	opts := &rpc.GetTransactionOpts{
		Encoding:                       encoding,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}
	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	c.recordCall("GetTransaction", err, time.Since(start))

	// Handle parsing errors for legacy transactions
	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		c.logger.WarnContext(ctx, "could not parse as versioned tx, retrying as legacy",
			"signature", signature,
		)
		legacyOpts := &rpc.GetTransactionOpts{
			Encoding:   encoding,
			Commitment: rpc.CommitmentConfirmed,
		}
		start = time.Now()
		result, err = c.rpc.GetTransaction(ctx, sig, legacyOpts)
		c.recordCall("GetTransaction", err, time.Since(start))
	}

	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, signature)
		}
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, signature)
	}

	rec := transactionToDomain(signature, result)
	c.logger.DebugContext(ctx, "fetched transaction",
		"signature", signature,
		"slot", rec.Slot,
		"block_time", blockTimeOrNil(rec.BlockTime),
		"has_meta", rec.Meta != nil,
	)
	return rec, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) recordCall(method string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, d.Seconds())
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return MaxSignaturePageSize
	case limit > MaxSignaturePageSize:
		return MaxSignaturePageSize
	default:
		return limit
	}
}
