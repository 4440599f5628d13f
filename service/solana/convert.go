package solana

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// signatureToDomain converts an RPC TransactionSignature to our SignatureInfo.
// A missing block time stays nil so callers can tell it apart from the epoch.
func signatureToDomain(sig *rpc.TransactionSignature) SignatureInfo {
	info := SignatureInfo{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
	}

	if sig.BlockTime != nil {
		t := sig.BlockTime.Time().UTC()
		info.BlockTime = &t
	}

	if sig.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", sig.Err)
		info.Err = &errMsg
	}

	return info
}

// transactionToDomain reduces a GetTransactionResult to a TransactionRecord.
// Only metadata is read; the transaction body is never decoded.
func transactionToDomain(signature string, result *rpc.GetTransactionResult) *TransactionRecord {
	rec := &TransactionRecord{
		Signature: signature,
		Slot:      result.Slot,
	}

	if result.BlockTime != nil {
		t := result.BlockTime.Time().UTC()
		rec.BlockTime = &t
	}

	if result.Meta == nil {
		return rec
	}

	meta := &TransactionMeta{
		PreTokenBalances:  make([]TokenBalance, 0, len(result.Meta.PreTokenBalances)),
		PostTokenBalances: make([]TokenBalance, 0, len(result.Meta.PostTokenBalances)),
	}
	if result.Meta.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", result.Meta.Err)
		meta.Err = &errMsg
	}
	for _, tb := range result.Meta.PreTokenBalances {
		meta.PreTokenBalances = append(meta.PreTokenBalances, tokenBalanceToDomain(tb))
	}
	for _, tb := range result.Meta.PostTokenBalances {
		meta.PostTokenBalances = append(meta.PostTokenBalances, tokenBalanceToDomain(tb))
	}
	rec.Meta = meta

	return rec
}

func tokenBalanceToDomain(tb rpc.TokenBalance) TokenBalance {
	out := TokenBalance{
		AccountIndex: tb.AccountIndex,
		Mint:         tb.Mint.String(),
	}
	if tb.Owner != nil {
		out.Owner = tb.Owner.String()
	}
	if tb.UiTokenAmount == nil {
		return out
	}

	out.Amount = tb.UiTokenAmount.Amount
	out.Decimals = tb.UiTokenAmount.Decimals
	if tb.UiTokenAmount.UiAmount != nil {
		// uiAmountString carries the exact digits; the float is the fallback.
		amount, err := decimal.NewFromString(tb.UiTokenAmount.UiAmountString)
		if err != nil {
			amount = decimal.NewFromFloat(*tb.UiTokenAmount.UiAmount)
		}
		out.UIAmount = &amount
	}
	return out
}

// blockTimeOrNil is a small helper for tests and logs.
func blockTimeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
