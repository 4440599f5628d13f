package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brojonat/transferindex/client"
	"github.com/brojonat/transferindex/service/indexer"
	"github.com/brojonat/transferindex/service/logging"
	"github.com/urfave/cli/v2"
)

func transfersCommand() *cli.Command {
	return &cli.Command{
		Name:    "transfers",
		Aliases: []string{"ls"},
		Usage:   "List the transfers a running server indexed (outputs JSON by default)",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Only Sent or Received transfers",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of transfers to retrieve (0 for all)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "info",
				Usage: "Print snapshot metadata to stderr",
			},
		}, outputFlags()...),
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			if t := c.String("type"); t != "" {
				if _, err := indexer.ParseDirection(t); err != nil {
					return err
				}
			}
			if c.Int("limit") < 0 {
				return fmt.Errorf("limit cannot be negative")
			}

			logger := logging.New(c.String("log-level"), "text", os.Stderr)
			cl := client.NewClient(c.String("server-url"), nil, logger)

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			transfers, info, err := cl.ListTransfers(ctx, client.ListOptions{
				TransferType: c.String("type"),
				Limit:        c.Int("limit"),
			})
			if err != nil {
				return fmt.Errorf("failed to list transfers: %w", err)
			}

			if info.Error != "" {
				fmt.Fprintf(c.App.ErrWriter, "warning: server indexing failed: %s\n", info.Error)
			}
			if c.Bool("info") {
				printSnapshotInfo(c, info)
			}

			converted, err := toIndexerTransfers(transfers)
			if err != nil {
				return err
			}
			return printTransfers(c, filters, converted)
		},
	}
}

func printSnapshotInfo(c *cli.Context, info *client.SnapshotInfo) {
	w := c.App.ErrWriter
	fmt.Fprintf(w, "Run ID:       %s\n", info.RunID)
	fmt.Fprintf(w, "Window:       %s .. %s\n", info.WindowStart.Format(time.RFC3339), info.WindowEnd.Format(time.RFC3339))
	fmt.Fprintf(w, "Page Limit:   %d (full: %t)\n", info.PageLimit, info.PageFull)
	if info.BestEffort != "" {
		fmt.Fprintf(w, "Best Effort:  %s\n", info.BestEffort)
	}
}

// toIndexerTransfers converts client transfers so both commands print the same shape.
func toIndexerTransfers(in []client.Transfer) ([]indexer.Transfer, error) {
	out := make([]indexer.Transfer, 0, len(in))
	for _, t := range in {
		dir, err := indexer.ParseDirection(t.TransferType)
		if err != nil {
			return nil, fmt.Errorf("transfer %s: %w", t.Signature, err)
		}
		out = append(out, indexer.Transfer{
			Date:      t.Date.UTC(),
			Amount:    t.Amount,
			Direction: dir,
			Signature: t.Signature,
		})
	}
	return out, nil
}

func splitURLs(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
