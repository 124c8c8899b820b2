package main

import (
	"context"
	"log/slog"
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
	"github.com/brojonat/solwallet/service/server"
	"github.com/brojonat/solwallet/service/solana"
	"github.com/brojonat/solwallet/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go/jetstream"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.SolanaNetwork,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

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

	store := db.NewStore(dbPool).WithMetrics(metricsCollector)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// Solana RPC client. For premium endpoints, include the API key in the URL.
	rpcURL, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), metricsCollector, logger)
	resolver := solana.NewAccountResolver(solanaClient, logger)
	logger.Info("initialized solana RPC client",
		"endpoint", solana.EndpointLabel(rpcURL),
		"total_endpoints", len(cfg.SolanaRPCURLs),
	)

	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("connected to temporal",
		"host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
	)

	// NATS is optional for the API; without it the operation stream is off.
	var js jetstream.JetStream
	nc, err := natspkg.Connect(cfg.NATSURL, "solwallet-server")
	if err != nil {
		logger.Warn("NATS unavailable, operation streaming disabled", "url", cfg.NATSURL, "error", err)
	} else {
		defer nc.Close()
		js, err = jetstream.New(nc)
		if err == nil {
			ensureCtx, ensureCancel := context.WithTimeout(ctx, 10*time.Second)
			err = natspkg.EnsureStream(ensureCtx, js, logger)
			ensureCancel()
		}
		if err != nil {
			logger.Warn("JetStream unavailable, operation streaming disabled", "error", err)
			js = nil
		} else {
			logger.Info("connected to NATS", "url", cfg.NATSURL)
		}
	}

	quotes := quote.NewJupiterSource(cfg.QuoteAPIURL, cfg.QuoteSlippageBps, nil, metricsCollector, logger)

	httpServer := server.New(cfg.ServerAddr, cfg, server.Dependencies{
		Operations: temporalClient,
		Mints:      store,
		Accounts:   resolver,
		Quotes:     quotes,
		JetStream:  js,
		Custodian:  custodianAddress(ctx, cfg, logger),
	}, metricsCollector, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

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

// custodianAddress resolves the account receive requests are addressed to.
// A zero key disables the receive endpoint.
func custodianAddress(ctx context.Context, cfg *config.Config, logger *slog.Logger) solanago.PublicKey {
	var c custodian.Custodian
	if cfg.CustodianKeypairPath != "" {
		kc, err := custodian.LoadKeypairCustodian(cfg.CustodianKeypairPath, logger)
		if err != nil {
			logger.Warn("failed to load custodian keypair, receive endpoint disabled", "error", err)
			return solanago.PublicKey{}
		}
		c = kc
	} else {
		c = custodian.NewRemoteCustodian(cfg.CustodianURL, nil, logger)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	addr, ok := c.ActiveAddress(lookupCtx)
	if !ok {
		logger.Warn("custodian has no active account, receive endpoint disabled", "custodian", c.Name())
		return solanago.PublicKey{}
	}
	logger.Info("custodian account resolved", "custodian", c.Name(), "address", addr.String())
	return addr
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
