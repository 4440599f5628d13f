package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/brojonat/transferindex/service/indexer"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// outputFlags are shared by commands that print transfers.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "must-jq",
			Usage:   "jq filter each transfer must satisfy (can be specified multiple times, all must match)",
			Aliases: []string{"jq"},
		},
		&cli.BoolFlag{
			Name:    "table",
			Aliases: []string{"t"},
			Usage:   "Output as human-readable table instead of JSON",
		},
	}
}

// compileJQFilters parses and compiles every filter up front so a typo fails
// before any network call.
func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// filterJSON keeps the items whose JSON form satisfies every filter.
// items must marshal to a JSON array.
func filterJSON(items any, filters []*gojq.Code) ([]any, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfers: %w", err)
	}
	var values []any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode transfers: %w", err)
	}

	out := make([]any, 0, len(values))
	for _, v := range values {
		if matchesAll(v, filters) {
			out = append(out, v)
		}
	}
	return out, nil
}

func matchesAll(v any, filters []*gojq.Code) bool {
	for _, code := range filters {
		iter := code.Run(v)
		result, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := result.(error); isErr {
			return false
		}
		if !isTruthy(result) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// row is the table view of one transfer.
type row struct {
	Date      time.Time
	Type      string
	Amount    string
	Signature string
}

func writeJSONOutput(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeTable(w io.Writer, rows []row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No transfers found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tSIGNATURE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Date.UTC().Format(time.RFC3339), r.Type, r.Amount, r.Signature)
	}
	return tw.Flush()
}

// rowsFromJSON builds table rows from filtered JSON transfer objects.
func rowsFromJSON(values []any) []row {
	rows := make([]row, 0, len(values))
	for _, v := range values {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		r := row{
			Type:      fmt.Sprint(m["transfer_type"]),
			Amount:    fmt.Sprint(m["amount"]),
			Signature: fmt.Sprint(m["signature"]),
		}
		if s, ok := m["date"].(string); ok {
			r.Date, _ = time.Parse(time.RFC3339, s)
		}
		rows = append(rows, r)
	}
	return rows
}

// printTransfers applies the jq filters and prints JSON or a table.
func printTransfers(c *cli.Context, filters []*gojq.Code, transfers []indexer.Transfer) error {
	values, err := filterJSON(transfers, filters)
	if err != nil {
		return err
	}

	if c.Bool("table") {
		return writeTable(c.App.Writer, rowsFromJSON(values))
	}
	return writeJSONOutput(c.App.Writer, values)
}
