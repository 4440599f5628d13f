package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/transferindex/service/indexer"
	"github.com/brojonat/transferindex/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet = "7cMEhpt9y3inBNVv8fNnuaEbx7hKHZnLvR1KWKKxuDDU"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot(transfers ...indexer.Transfer) *indexer.Snapshot {
	req := indexer.Request{
		Account: testWallet,
		Mint:    testMint,
		Window:  indexer.Window{Start: time.Unix(10, 0), End: time.Unix(20, 0)},
	}
	res := &indexer.Result{Transfers: transfers, PageLimit: 1000}
	return indexer.NewSnapshot(req, res, time.Unix(20, 0))
}

func transfer(sig, amount string, dir indexer.Direction, sec int64) indexer.Transfer {
	return indexer.Transfer{
		Date:      time.Unix(sec, 0).UTC(),
		Amount:    decimal.RequireFromString(amount),
		Direction: dir,
		Signature: sig,
	}
}

func newTestServer(snap *indexer.Snapshot) *Server {
	return New(":0", snap, nil, nil, discardLogger())
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListTransfers_EmptyIsArray(t *testing.T) {
	h := newTestServer(testSnapshot()).Handler()

	for _, path := range []string{"/", "/api/v1/transfers"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, h, path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestListTransfers_Body(t *testing.T) {
	snap := testSnapshot(transfer("S2", "12.5", indexer.Received, 15))
	rec := get(t, newTestServer(snap).Handler(), "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`[{"date":"1970-01-01T00:00:15Z","amount":12.5,"transfer_type":"Received","signature":"S2"}]`,
		rec.Body.String(),
	)
}

func TestListTransfers_Headers(t *testing.T) {
	snap := testSnapshot(transfer("S1", "1", indexer.Received, 15))
	rec := get(t, newTestServer(snap).Handler(), "/api/v1/transfers")

	h := rec.Header()
	assert.Equal(t, snap.RunID.String(), h.Get(HeaderRunID))
	assert.Equal(t, "1970-01-01T00:00:10Z", h.Get(HeaderWindowStart))
	assert.Equal(t, "1970-01-01T00:00:20Z", h.Get(HeaderWindowEnd))
	assert.Equal(t, "1000", h.Get(HeaderPageLimit))
	assert.Equal(t, "false", h.Get(HeaderPageFull))
	assert.Equal(t, "most-recent-page-only", h.Get(HeaderBestEffort))
	assert.Empty(t, h.Get(HeaderError))
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, h.Get("Access-Control-Expose-Headers"), HeaderRunID)
}

func TestListTransfers_DegradedSnapshot(t *testing.T) {
	snap := testSnapshot()
	snap.Err = "listing signatures failed: rpc unavailable"

	rec := get(t, newTestServer(snap).Handler(), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, snap.Err, rec.Header().Get(HeaderError))
}

func TestListTransfers_Filters(t *testing.T) {
	snap := testSnapshot(
		transfer("S1", "1", indexer.Received, 19),
		transfer("S2", "2", indexer.Sent, 18),
		transfer("S3", "3", indexer.Received, 17),
		transfer("S4", "4", indexer.Received, 16),
	)
	h := newTestServer(snap).Handler()

	tests := []struct {
		name     string
		target   string
		wantSigs []string
	}{
		{"no filter", "/api/v1/transfers", []string{"S1", "S2", "S3", "S4"}},
		{"received only", "/api/v1/transfers?transfer_type=Received", []string{"S1", "S3", "S4"}},
		{"sent only", "/api/v1/transfers?transfer_type=Sent", []string{"S2"}},
		{"limit", "/api/v1/transfers?limit=2", []string{"S1", "S2"}},
		{"limit with filter", "/?transfer_type=Received&limit=2", []string{"S1", "S3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var got []indexer.Transfer
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			sigs := make([]string, 0, len(got))
			for _, tr := range got {
				sigs = append(sigs, tr.Signature)
			}
			assert.Equal(t, tt.wantSigs, sigs)
		})
	}
}

func TestListTransfers_BadParameters(t *testing.T) {
	h := newTestServer(testSnapshot()).Handler()

	tests := []struct {
		target  string
		message string
	}{
		{"/?transfer_type=Burned", "invalid transfer_type"},
		{"/?limit=abc", "must be an integer"},
		{"/?limit=0", "at least 1"},
		{"/?limit=10001", "cannot exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestGetSnapshot(t *testing.T) {
	snap := testSnapshot(transfer("S1", "0.000001", indexer.Received, 15))
	snap.PageFull = true

	rec := get(t, newTestServer(snap).Handler(), "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, snap.RunID.String(), body["run_id"])
	assert.Equal(t, testWallet, body["wallet_address"])
	assert.Equal(t, testMint, body["token_mint"])
	assert.Equal(t, true, body["page_full"])
	assert.Equal(t, "most-recent-page-only", body["best_effort"])
	assert.EqualValues(t, 1, body["count"])
	assert.NotContains(t, body, "error")
	assert.Len(t, body["transfers"], 1)
	assert.Equal(t, "true", rec.Header().Get(HeaderPageFull))
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(testSnapshot()).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	rec := get(t, newTestServer(testSnapshot()).Handler(), "/api/v1/wallets")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(testSnapshot()).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/transfers", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	h := New(":0", testSnapshot(), m, reg, discardLogger()).Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestMetricsEndpoint_DisabledWithoutGatherer(t *testing.T) {
	rec := get(t, newTestServer(testSnapshot()).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
