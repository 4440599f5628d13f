package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/transferindex/service/metrics"
	"github.com/brojonat/transferindex/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	MaxConcurrency     = 16
)

// Ledger is the read-only view of the chain the indexer needs.
// *solana.Client implements it.
type Ledger interface {
	// ListSignatures returns one page of the newest signatures for address.
	// There is no continuation token.
	ListSignatures(ctx context.Context, address solana.Address, limit int, commitment rpc.CommitmentType) ([]solana.SignatureInfo, error)

	// GetTransaction returns solana.ErrTransactionNotFound for unknown signatures.
	GetTransaction(ctx context.Context, signature string, encoding solanago.EncodingType) (*solana.TransactionRecord, error)
}

// Options tunes a run. The zero value is usable; see DefaultOptions.
type Options struct {
	PageLimit        int
	Commitment       rpc.CommitmentType
	Encoding         solanago.EncodingType
	Concurrency      int
	MissingTimestamp MissingTimestampPolicy
	Mode             ExtractionMode
}

// DefaultOptions returns a 1000-signature confirmed page, 4 concurrent fetches,
// lenient timestamp handling and pre-balance extraction.
func DefaultOptions() Options {
	return Options{
		PageLimit:        solana.MaxSignaturePageSize,
		Commitment:       rpc.CommitmentConfirmed,
		Encoding:         solanago.EncodingBase64,
		Concurrency:      DefaultConcurrency,
		MissingTimestamp: Lenient,
		Mode:             PreBalanceMode,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PageLimit <= 0 || o.PageLimit > solana.MaxSignaturePageSize {
		o.PageLimit = d.PageLimit
	}
	if o.Commitment == "" {
		o.Commitment = d.Commitment
	}
	if o.Encoding == "" {
		o.Encoding = d.Encoding
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.Concurrency > MaxConcurrency {
		o.Concurrency = MaxConcurrency
	}
	return o
}

// Request names the wallet, the mint and the window to index.
type Request struct {
	Account string
	Mint    string
	Window  Window
}

// Result is the outcome of one run.
type Result struct {
	// Transfers in listing order (newest transaction first). Never nil.
	Transfers []Transfer
	Listed    int // signatures returned by the single listing call
	InWindow  int // candidates that passed the window filter
	Fetched   int // transactions fetched successfully
	Skipped   []Skip
	PageLimit int
	// PageFull means the listing hit PageLimit, so in-window transactions older
	// than the page may have been missed.
	PageFull bool
}

// Indexer reconstructs a wallet's token transfers over a time window.
type Indexer struct {
	ledger  Ledger
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Indexer. If metrics is nil, no metrics will be recorded.
func New(ledger Ledger, opts Options, m *metrics.Metrics, logger *slog.Logger) *Indexer {
	return &Indexer{
		ledger:  ledger,
		opts:    opts.withDefaults(),
		metrics: m,
		logger:  logger,
	}
}

// Options returns the effective options after defaults were applied.
func (ix *Indexer) Options() Options { return ix.opts }

// IndexTransfers runs Index and returns only the transfers.
func (ix *Indexer) IndexTransfers(ctx context.Context, account, mint string, start, end time.Time) ([]Transfer, error) {
	res, err := ix.Index(ctx, Request{Account: account, Mint: mint, Window: Window{Start: start, End: end}})
	if err != nil {
		return nil, err
	}
	return res.Transfers, nil
}

// Index lists the newest page of signatures for the account, keeps those whose block
// time lies in the window, fetches them, and extracts transfers in listing order.
//
// Malformed identifiers, a failed listing call, or (under Strict) a missing block
// time abort the run. Fetch failures only skip their candidate.
func (ix *Indexer) Index(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := ix.index(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	if ix.metrics != nil {
		ix.metrics.RecordIndexRun(req.Account, status, time.Since(start).Seconds())
	}
	return res, err
}

type candidate struct {
	signature string
	blockTime time.Time
}

type fetchResult struct {
	tx  *solana.TransactionRecord
	err error
}

func (ix *Indexer) index(ctx context.Context, req Request) (*Result, error) {
	account, err := solana.ParseAddress(req.Account)
	if err != nil {
		return nil, fmt.Errorf("%w: account: %w", ErrMalformedIdentifier, err)
	}
	mint, err := solana.ParseAddress(req.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: mint: %w", ErrMalformedIdentifier, err)
	}
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}

	sigs, err := ix.ledger.ListSignatures(ctx, account, ix.opts.PageLimit, ix.opts.Commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingFailure, err)
	}

	res := &Result{
		Transfers: []Transfer{},
		Listed:    len(sigs),
		PageLimit: ix.opts.PageLimit,
		PageFull:  len(sigs) >= ix.opts.PageLimit,
	}
	if res.PageFull {
		ix.logger.WarnContext(ctx, "signature page is full, older transactions in the window are unreachable",
			"wallet", account.String(),
			"page_limit", ix.opts.PageLimit,
		)
	}

	candidates := make([]candidate, 0, len(sigs))
	outOfWindow := 0
	for _, sig := range sigs {
		if sig.BlockTime == nil {
			if ix.opts.MissingTimestamp == Strict {
				return nil, fmt.Errorf("%w: %s", ErrMissingTimestamp, sig.Signature)
			}
			ix.skip(ctx, res, account, Skip{
				Signature: sig.Signature,
				Reason:    "missing_timestamp",
				Err:       fmt.Errorf("%w: %s", ErrMissingTimestamp, sig.Signature),
			})
			continue
		}
		ts := sig.BlockTime.UTC()
		if !req.Window.Contains(ts) {
			outOfWindow++
			continue
		}
		candidates = append(candidates, candidate{signature: sig.Signature, blockTime: ts})
	}
	res.InWindow = len(candidates)
	if ix.metrics != nil {
		ix.metrics.RecordCandidates(account.String(), "in_window", len(candidates))
		ix.metrics.RecordCandidates(account.String(), "out_of_window", outOfWindow)
	}

	fetched, err := ix.fetchAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	extract := ix.opts.Mode.Extractor()
	for i, c := range candidates {
		fr := fetched[i]
		if fr.err != nil {
			reason := "fetch_failure"
			if errors.Is(fr.err, solana.ErrTransactionNotFound) {
				reason = "not_found"
			}
			ix.skip(ctx, res, account, Skip{
				Signature: c.signature,
				Reason:    reason,
				Err:       fmt.Errorf("%w: %s: %w", ErrFetchFailure, c.signature, fr.err),
			})
			continue
		}
		res.Fetched++

		if fr.tx.Meta == nil {
			ix.logger.DebugContext(ctx, "transaction has no metadata", "signature", c.signature)
			continue
		}
		transfers := extract(fr.tx, account, mint, c.blockTime, c.signature)
		res.Transfers = append(res.Transfers, transfers...)
	}

	if ix.metrics != nil {
		received, sent := countDirections(res.Transfers)
		ix.metrics.RecordTransfersExtracted(account.String(), Received.String(), received)
		ix.metrics.RecordTransfersExtracted(account.String(), Sent.String(), sent)
	}

	ix.logger.InfoContext(ctx, "indexed transfers",
		"wallet", account.String(),
		"mint", mint.String(),
		"window_start", req.Window.Start,
		"window_end", req.Window.End,
		"listed", res.Listed,
		"in_window", res.InWindow,
		"fetched", res.Fetched,
		"skipped", len(res.Skipped),
		"transfers", len(res.Transfers),
		"mode", ix.opts.Mode.String(),
	)

	return res, nil
}

// fetchAll fetches candidates on a bounded pool. results[i] always belongs to
// candidates[i], whatever order the fetches complete in. A failed fetch never cancels
// its siblings; only cancellation of ctx aborts the batch.
func (ix *Indexer) fetchAll(ctx context.Context, candidates []candidate) ([]fetchResult, error) {
	results := make([]fetchResult, len(candidates))

	var g errgroup.Group
	g.SetLimit(ix.opts.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = fetchResult{err: err}
				return nil
			}
			tx, err := ix.ledger.GetTransaction(ctx, c.signature, ix.opts.Encoding)
			if err == nil && tx == nil {
				err = fmt.Errorf("%w: %s", solana.ErrTransactionNotFound, c.signature)
			}
			results[i] = fetchResult{tx: tx, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (ix *Indexer) skip(ctx context.Context, res *Result, account solana.Address, s Skip) {
	res.Skipped = append(res.Skipped, s)
	ix.logger.WarnContext(ctx, "skipping candidate",
		"signature", s.Signature,
		"reason", s.Reason,
		"error", s.Err,
	)
	if ix.metrics != nil {
		ix.metrics.RecordCandidateSkipped(account.String(), s.Reason)
	}
}

func countDirections(transfers []Transfer) (received, sent int) {
	for _, t := range transfers {
		if t.Direction == Sent {
			sent++
		} else {
			received++
		}
	}
	return received, sent
}
