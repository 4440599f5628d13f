package indexer

import (
	"testing"

	"github.com/brojonat/transferindex/service/solana"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wallet = solana.MustParseAddress(testWallet)
	usdc   = solana.MustParseAddress(testMint)
)

func TestExtract_NoMetadata(t *testing.T) {
	tx := &solana.TransactionRecord{Signature: "S1"}
	assert.Empty(t, Extract(tx, wallet, usdc, unix(15), "S1"))
	assert.Empty(t, Extract(nil, wallet, usdc, unix(15), "S1"))
	assert.Empty(t, ExtractDeltas(tx, wallet, usdc, unix(15), "S1"))
}

func TestExtract_IgnoresNonMatchingEntries(t *testing.T) {
	tx := txWithPre("S1",
		balance(otherOwner, testMint, dec("5")),
		balance(testWallet, otherMint, dec("6")),
		balance(otherOwner, otherMint, dec("7")),
		balance("", testMint, dec("8")),
	)

	assert.Empty(t, Extract(tx, wallet, usdc, unix(15), "S1"))
}

func TestExtract_OneRecordPerMatchingEntry(t *testing.T) {
	tx := txWithPre("S1",
		balance(testWallet, testMint, dec("1.25")),
		balance(otherOwner, testMint, dec("99")),
		balance(testWallet, testMint, nil),
		balance(testWallet, testMint, dec("3")),
	)
	ts := unix(15)

	got := Extract(tx, wallet, usdc, ts, "S1")
	require.Len(t, got, 3)

	wantAmounts := []string{"1.25", "0", "3"}
	for i, tr := range got {
		assert.Equal(t, ts, tr.Date)
		assert.Equal(t, "S1", tr.Signature)
		assert.Equal(t, Received, tr.Direction)
		assert.True(t, decimal.RequireFromString(wantAmounts[i]).Equal(tr.Amount),
			"record %d: want %s got %s", i, wantAmounts[i], tr.Amount)
	}
}

func TestExtract_IgnoresPostBalances(t *testing.T) {
	tx := &solana.TransactionRecord{
		Meta: &solana.TransactionMeta{
			PostTokenBalances: []solana.TokenBalance{balance(testWallet, testMint, dec("10"))},
		},
	}
	assert.Empty(t, Extract(tx, wallet, usdc, unix(15), "S1"))
}

func TestExtractDeltas(t *testing.T) {
	tests := []struct {
		name    string
		pre     []solana.TokenBalance
		post    []solana.TokenBalance
		wantDir Direction
		want    string // empty means no record
	}{
		{
			name:    "received",
			pre:     []solana.TokenBalance{rawBalance(testWallet, testMint, "1000000", 6)},
			post:    []solana.TokenBalance{rawBalance(testWallet, testMint, "13500000", 6)},
			wantDir: Received,
			want:    "12.5",
		},
		{
			name:    "sent",
			pre:     []solana.TokenBalance{rawBalance(testWallet, testMint, "20000000", 6)},
			post:    []solana.TokenBalance{rawBalance(testWallet, testMint, "7500000", 6)},
			wantDir: Sent,
			want:    "12.5",
		},
		{
			name: "unchanged",
			pre:  []solana.TokenBalance{rawBalance(testWallet, testMint, "5", 6)},
			post: []solana.TokenBalance{rawBalance(testWallet, testMint, "5", 6)},
		},
		{
			name:    "new token account counts pre as zero",
			post:    []solana.TokenBalance{rawBalance(testWallet, testMint, "2000000", 6)},
			wantDir: Received,
			want:    "2",
		},
		{
			name:    "closed token account counts post as zero",
			pre:     []solana.TokenBalance{rawBalance(testWallet, testMint, "2000000", 6)},
			wantDir: Sent,
			want:    "2",
		},
		{
			name: "multiple token accounts are summed",
			pre: []solana.TokenBalance{
				rawBalance(testWallet, testMint, "1000000", 6),
				rawBalance(testWallet, testMint, "1000000", 6),
			},
			post: []solana.TokenBalance{
				rawBalance(testWallet, testMint, "3000000", 6),
				rawBalance(testWallet, testMint, "500000", 6),
			},
			wantDir: Received,
			want:    "1.5",
		},
		{
			name: "other owners and mints ignored",
			pre: []solana.TokenBalance{
				rawBalance(otherOwner, testMint, "1", 6),
				rawBalance(testWallet, otherMint, "1", 6),
			},
			post: []solana.TokenBalance{
				rawBalance(otherOwner, testMint, "9", 6),
				rawBalance(testWallet, otherMint, "9", 6),
			},
		},
		{
			name:    "falls back to ui amount",
			pre:     []solana.TokenBalance{balance(testWallet, testMint, dec("4"))},
			post:    []solana.TokenBalance{balance(testWallet, testMint, dec("1.5"))},
			wantDir: Sent,
			want:    "2.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &solana.TransactionRecord{
				Meta: &solana.TransactionMeta{PreTokenBalances: tt.pre, PostTokenBalances: tt.post},
			}
			got := ExtractDeltas(tx, wallet, usdc, unix(15), "S1")
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantDir, got[0].Direction)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got[0].Amount),
				"want %s got %s", tt.want, got[0].Amount)
			assert.False(t, got[0].Amount.IsNegative())
			assert.Equal(t, "S1", got[0].Signature)
		})
	}
}

func TestExtractionModeExtractor(t *testing.T) {
	tx := &solana.TransactionRecord{
		Meta: &solana.TransactionMeta{
			PreTokenBalances:  []solana.TokenBalance{rawBalance(testWallet, testMint, "1000000", 6)},
			PostTokenBalances: []solana.TokenBalance{rawBalance(testWallet, testMint, "1000000", 6)},
		},
	}

	// pre-balance mode reports the holding even though nothing moved
	assert.Len(t, PreBalanceMode.Extractor()(tx, wallet, usdc, unix(1), "S"), 1)
	assert.Empty(t, DeltaMode.Extractor()(tx, wallet, usdc, unix(1), "S"))
}
