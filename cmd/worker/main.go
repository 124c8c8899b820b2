package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solwallet/service/config"
	"github.com/brojonat/solwallet/service/custodian"
	"github.com/brojonat/solwallet/service/db"
	"github.com/brojonat/solwallet/service/metrics"
	natspkg "github.com/brojonat/solwallet/service/nats"
	"github.com/brojonat/solwallet/service/quote"
	"github.com/brojonat/solwallet/service/solana"
	"github.com/brojonat/solwallet/service/temporal"
	"github.com/brojonat/solwallet/service/wallet"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"network", cfg.SolanaNetwork,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	store := db.NewStore(dbPool).WithMetrics(metricsCollector)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// Start metrics HTTP server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	rpcURL, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	ledger := solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), metricsCollector, logger).
		WithConfirmOptions(solana.ConfirmOptions{
			Timeout:     cfg.ConfirmTimeout,
			MinInterval: cfg.ConfirmMinInterval,
			MaxInterval: cfg.ConfirmMaxInterval,
		})
	logger.Info("initialized solana RPC client",
		"endpoint", solana.EndpointLabel(rpcURL),
		"total_endpoints", len(cfg.SolanaRPCURLs),
	)

	var keyCustody custodian.Custodian
	if cfg.CustodianKeypairPath != "" {
		keyCustody, err = custodian.LoadKeypairCustodian(cfg.CustodianKeypairPath, logger)
		if err != nil {
			logger.Error("failed to load custodian keypair", "error", err)
			os.Exit(1)
		}
	} else {
		keyCustody = custodian.NewRemoteCustodian(cfg.CustodianURL, nil, logger)
	}
	signer := custodian.NewGateway(keyCustody, metricsCollector, logger)
	logger.Info("initialized custodian", "custodian", keyCustody.Name())

	natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create NATS publisher", "error", err)
		os.Exit(1)
	}
	defer natsPublisher.Close()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	observer := wallet.Observers{
		natspkg.NewOperationObserver(natsPublisher, logger),
		wallet.ObserverFunc(func(ctx context.Context, e wallet.Event) {
			logger.DebugContext(ctx, "operation transition",
				"operation_id", e.OperationID,
				"operation", e.Operation,
				"phase", e.Phase,
				"state", e.State,
			)
		}),
	}

	// One guard serializes transfers and mints against the single custodian.
	guard := wallet.NewGuard()
	transfers := wallet.NewTransferWorkflow(ledger, signer, guard, observer, metricsCollector, logger)
	mints := wallet.NewMintWorkflow(ledger, signer, guard, observer, metricsCollector, logger).
		WithRecorder(db.NewMintRecorder(store, cfg.SolanaNetwork))

	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Transfers:         transfers,
		Mints:             mints,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	// Relay configured quote pairs to NATS for downstream consumers.
	if len(cfg.QuoteRelayPairs) > 0 {
		source := quote.NewJupiterSource(cfg.QuoteAPIURL, cfg.QuoteSlippageBps, nil, metricsCollector, logger)
		assets := quote.DefaultRegistry()
		for _, pair := range cfg.QuoteRelayPairs {
			params, err := quote.NewParams(assets, pair.From, pair.To, pair.Amount)
			if err != nil {
				logger.Error("invalid quote relay pair", "from", pair.From, "to", pair.To, "error", err)
				os.Exit(1)
			}
			poller := quote.NewPoller(source, cfg.QuoteInterval, metricsCollector, logger)
			defer poller.Stop()
			go natspkg.RelayQuotes(ctx, poller, natsPublisher, logger)
			if err := poller.Update(params); err != nil {
				logger.Error("failed to start quote poller", "pair", params.Key(), "error", err)
				os.Exit(1)
			}
			logger.Info("relaying quotes", "pair", params.Key(), "interval", cfg.QuoteInterval)
		}
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"total_endpoints", len(cfg.SolanaRPCURLs),
		"temporal_host", cfg.TemporalHost,
		"temporal_namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting temporal worker")
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		logger.Info("stopping temporal worker")
		worker.Stop()
		logger.Info("temporal worker stopped")

		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
