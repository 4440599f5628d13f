package indexer

import (
	"time"

	"github.com/brojonat/transferindex/service/solana"
	"github.com/shopspring/decimal"
)

// Extractor derives transfers for account and mint from one fetched transaction.
type Extractor func(tx *solana.TransactionRecord, account, mint solana.Address, ts time.Time, signature string) []Transfer

// Extractor returns the extraction function for m.
func (m ExtractionMode) Extractor() Extractor {
	if m == DeltaMode {
		return ExtractDeltas
	}
	return Extract
}

// Extract emits one Received transfer per pre-transaction token balance owned by
// account in mint, carrying that balance's UI amount (zero when absent).
//
// This reports the wallet's holding going into the transaction, not the amount the
// transaction moved. Post balances are not consulted; see ExtractDeltas for that.
func Extract(tx *solana.TransactionRecord, account, mint solana.Address, ts time.Time, signature string) []Transfer {
	if tx == nil || tx.Meta == nil {
		return nil
	}

	var out []Transfer
	for _, tb := range tx.Meta.PreTokenBalances {
		if !account.Matches(tb.Owner) || !mint.Matches(tb.Mint) {
			continue
		}
		amount := decimal.Zero
		if tb.UIAmount != nil {
			amount = *tb.UIAmount
		}
		if amount.IsNegative() {
			continue
		}
		out = append(out, Transfer{
			Date:      ts.UTC(),
			Amount:    amount,
			Direction: Received,
			Signature: signature,
		})
	}
	return out
}

// ExtractDeltas diffs the summed pre and post balances of account in mint and emits
// at most one transfer: Sent when the balance fell, Received when it rose.
// A side with no matching entry counts as zero.
func ExtractDeltas(tx *solana.TransactionRecord, account, mint solana.Address, ts time.Time, signature string) []Transfer {
	if tx == nil || tx.Meta == nil {
		return nil
	}

	pre, preFound := sumBalances(tx.Meta.PreTokenBalances, account, mint)
	post, postFound := sumBalances(tx.Meta.PostTokenBalances, account, mint)
	if !preFound && !postFound {
		return nil
	}

	delta := post.Sub(pre)
	if delta.IsZero() {
		return nil
	}

	dir := Received
	if delta.IsNegative() {
		dir = Sent
	}
	return []Transfer{{
		Date:      ts.UTC(),
		Amount:    delta.Abs(),
		Direction: dir,
		Signature: signature,
	}}
}

// sumBalances adds up every token account account holds in mint.
func sumBalances(balances []solana.TokenBalance, account, mint solana.Address) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, tb := range balances {
		if !account.Matches(tb.Owner) || !mint.Matches(tb.Mint) {
			continue
		}
		amount, ok := scaledAmount(tb)
		if !ok {
			continue
		}
		total = total.Add(amount)
		found = true
	}
	return total, found
}

// scaledAmount prefers the raw base-unit amount shifted by decimals, which is exact,
// and falls back to the node's UI amount.
func scaledAmount(tb solana.TokenBalance) (decimal.Decimal, bool) {
	if tb.Amount != "" {
		raw, err := decimal.NewFromString(tb.Amount)
		if err == nil {
			return raw.Shift(-int32(tb.Decimals)), true
		}
	}
	if tb.UIAmount != nil {
		return *tb.UIAmount, true
	}
	return decimal.Zero, false
}
