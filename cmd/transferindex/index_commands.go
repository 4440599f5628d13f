package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brojonat/transferindex/service/config"
	"github.com/brojonat/transferindex/service/indexer"
	"github.com/brojonat/transferindex/service/logging"
	"github.com/brojonat/transferindex/service/solana"
	"github.com/urfave/cli/v2"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Index a wallet's token transfers directly from a Solana RPC node",
		Description: `Run one indexing pass and print the transfers.

Only the newest page of signatures (at most --page-limit) is examined, so a busy
wallet may have older in-window transfers that are not reported.

Example:
  transferindex index --window 6h --must-jq '.amount > 100' --table`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL (comma-separated list picks one at random)",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   config.DefaultSolanaRPCURL,
			},
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Wallet address to index",
				EnvVars: []string{"WALLET_ADDRESS"},
				Value:   config.DefaultWalletAddress,
			},
			&cli.StringFlag{
				Name:    "mint",
				Aliases: []string{"m"},
				Usage:   "Token mint address",
				EnvVars: []string{"TOKEN_MINT"},
				Value:   config.DefaultTokenMint,
			},
			&cli.DurationFlag{
				Name:  "window",
				Usage: "Index the window ending now with this length (ignored when --start is set)",
				Value: 24 * time.Hour,
			},
			&cli.TimestampFlag{
				Name:   "start",
				Usage:  "Window start (RFC3339)",
				Layout: time.RFC3339,
			},
			&cli.TimestampFlag{
				Name:   "end",
				Usage:  "Window end (RFC3339, default now)",
				Layout: time.RFC3339,
			},
			&cli.IntFlag{
				Name:  "page-limit",
				Usage: "Signatures to list (1-1000)",
				Value: solana.MaxSignaturePageSize,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent transaction fetches (1-16)",
				Value: indexer.DefaultConcurrency,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Extraction mode: pre-balance or delta",
				Value: indexer.PreBalanceMode.String(),
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail the run when a signature has no block time instead of skipping it",
			},
			&cli.DurationFlag{
				Name:  "rpc-timeout",
				Usage: "Timeout for each RPC call",
				Value: 30 * time.Second,
			},
		}, outputFlags()...),
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			window, err := windowFromFlags(c, time.Now())
			if err != nil {
				return err
			}

			opts, err := optionsFromFlags(c)
			if err != nil {
				return err
			}

			logger := logging.New(c.String("log-level"), "text", os.Stderr)

			rpcURL, err := solana.SelectRandomEndpoint(splitURLs(c.String("rpc-url")))
			if err != nil {
				return err
			}
			endpoint := solana.EndpointLabel(rpcURL)
			sc := solana.NewClient(solana.NewRPCClient(rpcURL), endpoint, c.Duration("rpc-timeout"), nil, logger)
			ix := indexer.New(sc, opts, nil, logger)

			res, err := ix.Index(context.Background(), indexer.Request{
				Account: c.String("wallet"),
				Mint:    c.String("mint"),
				Window:  window,
			})
			if err != nil {
				return fmt.Errorf("failed to index transfers: %w", err)
			}

			if res.PageFull {
				fmt.Fprintf(c.App.ErrWriter, "warning: signature page is full (%d); older transfers in the window may be missing\n", res.PageLimit)
			}
			for _, s := range res.Skipped {
				fmt.Fprintf(c.App.ErrWriter, "skipped %s: %s\n", s.Signature, s.Reason)
			}

			return printTransfers(c, filters, res.Transfers)
		},
	}
}

// windowFromFlags resolves --start/--end, falling back to --window ending at now.
func windowFromFlags(c *cli.Context, now time.Time) (indexer.Window, error) {
	end := now.UTC()
	if t := c.Timestamp("end"); t != nil {
		end = t.UTC()
	}

	var w indexer.Window
	if t := c.Timestamp("start"); t != nil {
		w = indexer.Window{Start: t.UTC(), End: end}
	} else {
		if c.Duration("window") <= 0 {
			return indexer.Window{}, fmt.Errorf("window must be positive")
		}
		w = indexer.LastWindow(end, c.Duration("window"))
	}

	if err := w.Validate(); err != nil {
		return indexer.Window{}, err
	}
	return w, nil
}

func optionsFromFlags(c *cli.Context) (indexer.Options, error) {
	opts := indexer.DefaultOptions()

	pageLimit := c.Int("page-limit")
	if pageLimit < 1 || pageLimit > solana.MaxSignaturePageSize {
		return opts, fmt.Errorf("page-limit must be between 1 and %d", solana.MaxSignaturePageSize)
	}
	opts.PageLimit = pageLimit

	concurrency := c.Int("concurrency")
	if concurrency < 1 || concurrency > indexer.MaxConcurrency {
		return opts, fmt.Errorf("concurrency must be between 1 and %d", indexer.MaxConcurrency)
	}
	opts.Concurrency = concurrency

	mode, err := indexer.ParseExtractionMode(c.String("mode"))
	if err != nil {
		return opts, err
	}
	opts.Mode = mode

	if c.Bool("strict") {
		opts.MissingTimestamp = indexer.Strict
	}
	return opts, nil
}
