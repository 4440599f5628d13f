package solana

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionToDomain_NoMeta(t *testing.T) {
	rec := transactionToDomain("sig", &rpc.GetTransactionResult{Slot: 5})
	assert.Equal(t, "sig", rec.Signature)
	assert.Nil(t, rec.Meta)
	assert.Nil(t, rec.BlockTime)
}

func TestTransactionToDomain_TokenBalances(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58(testWallet)
	mint := solana.MustPublicKeyFromBase58(testMint)
	ui := 3.25
	bt := solana.UnixTimeSeconds(1700000123)

	result := &rpc.GetTransactionResult{
		Slot:      9,
		BlockTime: &bt,
		Meta: &rpc.TransactionMeta{
			Err: map[string]interface{}{"InstructionError": []interface{}{1, "Custom"}},
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 2, Owner: &owner, Mint: mint, UiTokenAmount: &rpc.UiTokenAmount{Amount: "3250000", Decimals: 6, UiAmount: &ui, UiAmountString: "3.25"}},
				{AccountIndex: 3, Owner: nil, Mint: mint, UiTokenAmount: &rpc.UiTokenAmount{Amount: "0", Decimals: 6}},
				{AccountIndex: 4, Owner: &owner, Mint: mint},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 2, Owner: &owner, Mint: mint, UiTokenAmount: &rpc.UiTokenAmount{Amount: "0", Decimals: 6}},
			},
		},
	}

	rec := transactionToDomain("sig", result)
	require.NotNil(t, rec.Meta)
	require.NotNil(t, rec.BlockTime)
	assert.Equal(t, time.Unix(1700000123, 0).UTC(), *rec.BlockTime)
	require.NotNil(t, rec.Meta.Err)

	require.Len(t, rec.Meta.PreTokenBalances, 3)
	first := rec.Meta.PreTokenBalances[0]
	assert.Equal(t, uint16(2), first.AccountIndex)
	assert.Equal(t, testWallet, first.Owner)
	assert.Equal(t, testMint, first.Mint)
	assert.Equal(t, "3250000", first.Amount)
	assert.Equal(t, uint8(6), first.Decimals)
	require.NotNil(t, first.UIAmount)
	assert.Equal(t, "3.25", first.UIAmount.String())

	assert.Empty(t, rec.Meta.PreTokenBalances[1].Owner)
	assert.Nil(t, rec.Meta.PreTokenBalances[1].UIAmount, "no uiAmount means no scaled amount")
	assert.Nil(t, rec.Meta.PreTokenBalances[2].UIAmount)

	require.Len(t, rec.Meta.PostTokenBalances, 1)
	assert.Nil(t, rec.Meta.PostTokenBalances[0].UIAmount)
}

func TestTokenBalanceToDomain_FallsBackToFloat(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58(testMint)
	ui := 1.5

	tb := tokenBalanceToDomain(rpc.TokenBalance{
		Mint:          mint,
		UiTokenAmount: &rpc.UiTokenAmount{Amount: "1500000", Decimals: 6, UiAmount: &ui},
	})
	require.NotNil(t, tb.UIAmount)
	assert.Equal(t, "1.5", tb.UIAmount.String())
}
