package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is one indexed token movement as served by the transfer index.
type Transfer struct {
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	TransferType string          `json:"transfer_type"` // Sent or Received
	Signature    string          `json:"signature"`
}

// SnapshotInfo is the metadata the server attaches to transfer responses.
type SnapshotInfo struct {
	RunID       uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
	PageLimit   int
	PageFull    bool
	BestEffort  string
	// Error is set when the server's indexing run failed and it serves an empty list.
	Error string
}

// ListOptions narrows a transfer listing. The zero value lists everything.
type ListOptions struct {
	TransferType string
	Limit        int
}

// Client is the HTTP client for the transfer index service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new transfer index client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListTransfers retrieves the server's indexed transfers together with the
// snapshot metadata from the response headers.
func (c *Client) ListTransfers(ctx context.Context, opts ListOptions) ([]Transfer, *SnapshotInfo, error) {
	params := url.Values{}
	if opts.TransferType != "" {
		params.Set("transfer_type", opts.TransferType)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	u := c.baseURL + "/api/v1/transfers"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, c.parseErrorResponse(resp)
	}

	var transfers []Transfer
	if err := json.NewDecoder(resp.Body).Decode(&transfers); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if transfers == nil {
		transfers = []Transfer{}
	}

	info, err := parseSnapshotInfo(resp.Header)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Debug("transfers listed",
		"count", len(transfers),
		"run_id", info.RunID,
		"page_full", info.PageFull,
	)
	return transfers, info, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func parseSnapshotInfo(h http.Header) (*SnapshotInfo, error) {
	info := &SnapshotInfo{
		BestEffort: h.Get("X-Index-Best-Effort"),
		Error:      h.Get("X-Index-Error"),
	}

	if v := h.Get("X-Index-Run-Id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid run id header %q: %w", v, err)
		}
		info.RunID = id
	}
	if v := h.Get("X-Index-Window-Start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid window start header %q: %w", v, err)
		}
		info.WindowStart = t
	}
	if v := h.Get("X-Index-Window-End"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid window end header %q: %w", v, err)
		}
		info.WindowEnd = t
	}
	if v := h.Get("X-Index-Page-Limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid page limit header %q: %w", v, err)
		}
		info.PageLimit = n
	}
	info.PageFull = h.Get("X-Index-Page-Full") == "true"

	return info, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
