package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Run-fatal errors. They abort Index and are degraded to an empty snapshot by BuildSnapshot.
var (
	ErrMalformedIdentifier = errors.New("malformed identifier")
	ErrListingFailure      = errors.New("listing signatures failed")
)

// Per-candidate errors. Under the default policies these are recorded as a Skip
// and the run continues.
var (
	ErrMissingTimestamp = errors.New("candidate has no block time")
	ErrFetchFailure     = errors.New("fetching transaction failed")
)

// Direction of a transfer relative to the indexed wallet.
type Direction int

const (
	Received Direction = iota
	Sent
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "Sent"
	case Received:
		return "Received"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "Sent" or "Received".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "Sent":
		return Sent, nil
	case "Received":
		return Received, nil
	default:
		return 0, fmt.Errorf("unknown transfer direction %q", s)
	}
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if d != Sent && d != Received {
		return nil, fmt.Errorf("cannot marshal %s", d)
	}
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Transfer is one token movement attributed to the indexed wallet.
// Values are built once during extraction and never mutated.
type Transfer struct {
	Date      time.Time
	Amount    decimal.Decimal
	Direction Direction
	Signature string
}

type transferJSON struct {
	Date         time.Time   `json:"date"`
	Amount       json.Number `json:"amount"`
	TransferType Direction   `json:"transfer_type"`
	Signature    string      `json:"signature"`
}

// MarshalJSON writes the amount as a JSON number with its exact decimal digits.
func (t Transfer) MarshalJSON() ([]byte, error) {
	return json.Marshal(transferJSON{
		Date:         t.Date.UTC(),
		Amount:       json.Number(t.Amount.String()),
		TransferType: t.Direction,
		Signature:    t.Signature,
	})
}

func (t *Transfer) UnmarshalJSON(b []byte) error {
	var raw transferJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(raw.Amount.String())
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	*t = Transfer{
		Date:      raw.Date.UTC(),
		Amount:    amount,
		Direction: raw.TransferType,
		Signature: raw.Signature,
	}
	return nil
}

// MissingTimestampPolicy decides what happens to a candidate without a block time.
type MissingTimestampPolicy int

const (
	// Lenient skips the candidate and records it.
	Lenient MissingTimestampPolicy = iota
	// Strict aborts the whole run.
	Strict
)

func (p MissingTimestampPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// ParseMissingTimestampPolicy parses "strict" or "lenient".
func ParseMissingTimestampPolicy(s string) (MissingTimestampPolicy, error) {
	switch s {
	case "lenient", "":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return 0, fmt.Errorf("unknown missing timestamp policy %q (want strict or lenient)", s)
	}
}

// ExtractionMode selects how transfers are derived from token balances.
type ExtractionMode int

const (
	// PreBalanceMode reports each matching pre-transaction balance as Received.
	PreBalanceMode ExtractionMode = iota
	// DeltaMode diffs pre and post balances and classifies the sign.
	DeltaMode
)

func (m ExtractionMode) String() string {
	if m == DeltaMode {
		return "delta"
	}
	return "pre-balance"
}

// ParseExtractionMode parses "pre-balance" or "delta".
func ParseExtractionMode(s string) (ExtractionMode, error) {
	switch s {
	case "pre-balance", "":
		return PreBalanceMode, nil
	case "delta":
		return DeltaMode, nil
	default:
		return 0, fmt.Errorf("unknown extraction mode %q (want pre-balance or delta)", s)
	}
}

// Skip records a candidate that was dropped without failing the run.
type Skip struct {
	Signature string
	Reason    string // "missing_timestamp", "not_found", "fetch_failure"
	Err       error
}
