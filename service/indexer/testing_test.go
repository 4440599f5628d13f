package indexer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/transferindex/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

const (
	testWallet = "7cMEhpt9y3inBNVv8fNnuaEbx7hKHZnLvR1KWKKxuDDU"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	otherOwner = "So11111111111111111111111111111111111111112"
	otherMint  = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// fakeLedger implements Ledger for tests.
// It's behavior-focused: we set what it should return and inspect what was fetched.
type fakeLedger struct {
	signatures   []solana.SignatureInfo
	transactions map[string]*solana.TransactionRecord
	fetchErrs    map[string]error
	listErr      error
	delays       map[string]time.Duration

	mu             sync.Mutex
	fetched        []string
	inFlight       int
	maxInFlight    int
	lastLimit      int
	lastCommitment rpc.CommitmentType
	lastEncoding   solanago.EncodingType
}

func (f *fakeLedger) ListSignatures(ctx context.Context, address solana.Address, limit int, commitment rpc.CommitmentType) ([]solana.SignatureInfo, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.lastCommitment = commitment
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.signatures, nil
}

func (f *fakeLedger) GetTransaction(ctx context.Context, signature string, encoding solanago.EncodingType) (*solana.TransactionRecord, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, signature)
	f.lastEncoding = encoding
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if d, ok := f.delays[signature]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.fetchErrs[signature]; ok {
		return nil, err
	}
	tx, ok := f.transactions[signature]
	if !ok {
		return nil, solana.ErrTransactionNotFound
	}
	return tx, nil
}

func (f *fakeLedger) fetchedSignatures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func unix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func sigAt(signature string, sec int64) solana.SignatureInfo {
	t := unix(sec)
	return solana.SignatureInfo{Signature: signature, BlockTime: &t}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func balance(owner, mint string, ui *decimal.Decimal) solana.TokenBalance {
	return solana.TokenBalance{Owner: owner, Mint: mint, UIAmount: ui}
}

func rawBalance(owner, mint, amount string, decimals uint8) solana.TokenBalance {
	return solana.TokenBalance{Owner: owner, Mint: mint, Amount: amount, Decimals: decimals}
}

func txWithPre(signature string, pre ...solana.TokenBalance) *solana.TransactionRecord {
	return &solana.TransactionRecord{
		Signature: signature,
		Meta:      &solana.TransactionMeta{PreTokenBalances: pre},
	}
}
