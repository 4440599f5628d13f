package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/transferindex/service/config"
	"github.com/brojonat/transferindex/service/indexer"
	"github.com/brojonat/transferindex/service/logging"
	"github.com/brojonat/transferindex/service/metrics"
	"github.com/brojonat/transferindex/service/nats"
	"github.com/brojonat/transferindex/service/server"
	"github.com/brojonat/transferindex/service/solana"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"wallet", cfg.WalletAddress,
		"mint", cfg.TokenMint,
		"window", cfg.IndexWindow,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Note: For premium RPC endpoints, include API key in the URL
	rpcURL, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	endpoint := solana.EndpointLabel(rpcURL)
	solanaClient := solana.NewClient(solana.NewRPCClient(rpcURL), endpoint, cfg.RPCTimeout, metricsCollector, logger)
	logger.Info("initialized solana RPC client",
		"endpoint", endpoint,
		"endpoints_configured", len(cfg.SolanaRPCURLs),
	)

	// Index once. The snapshot is served unchanged until shutdown.
	ix := indexer.New(solanaClient, cfg.IndexerOptions(), metricsCollector, logger)
	end := time.Now().UTC()
	req := indexer.Request{
		Account: cfg.WalletAddress,
		Mint:    cfg.TokenMint,
		Window:  indexer.LastWindow(end, cfg.IndexWindow),
	}
	snap := indexer.BuildSnapshot(ctx, ix, req, logger)
	if ctx.Err() != nil {
		logger.Info("shutdown signal received during indexing")
		return
	}
	logger.Info("snapshot ready",
		"run_id", snap.RunID,
		"transfers", snap.Len(),
		"skipped", snap.Skipped,
		"page_full", snap.PageFull,
		"degraded", snap.Degraded(),
	)

	if cfg.NATSURL != "" {
		publishSnapshot(ctx, cfg.NATSURL, snap, metricsCollector, logger)
	}

	httpServer := server.New(cfg.ServerAddr, snap, metricsCollector, prometheus.DefaultGatherer, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// publishSnapshot sends the snapshot to JetStream once. Failures are logged;
// the HTTP surface does not depend on NATS.
func publishSnapshot(ctx context.Context, natsURL string, snap *indexer.Snapshot, m *metrics.Metrics, logger *slog.Logger) {
	publisher, err := nats.NewPublisher(natsURL, m, logger)
	if err != nil {
		logger.Error("failed to create NATS publisher", "error", err)
		return
	}
	defer publisher.Close()

	publishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := nats.PublishSnapshot(publishCtx, publisher, snap, logger); err != nil {
		logger.Error("failed to publish snapshot", "error", err)
	}
}
