package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/solwallet/service/config"
	"github.com/brojonat/solwallet/service/custodian"
	"github.com/brojonat/solwallet/service/solana"
	"github.com/brojonat/solwallet/service/wallet"
	"github.com/urfave/cli/v2"
)

// localRuntime runs operations in-process with a keypair custodian.
type localRuntime struct {
	ledger    *solana.Client
	custodian *custodian.KeypairCustodian
	transfers *wallet.TransferWorkflow
	mints     *wallet.MintWorkflow
	logger    *slog.Logger
}

func rpcURL(c *cli.Context) (string, error) {
	if u := c.String("rpc-url"); u != "" {
		return u, nil
	}
	u := config.DefaultRPCURL(c.String("network"))
	if u == "" {
		return "", fmt.Errorf("unknown network %q (use devnet or mainnet, or set --rpc-url)", c.String("network"))
	}
	return u, nil
}

func newLedger(c *cli.Context, logger *slog.Logger) (*solana.Client, error) {
	u, err := rpcURL(c)
	if err != nil {
		return nil, err
	}
	return solana.NewClient(solana.NewRPCClient(u), solana.EndpointLabel(u), nil, logger), nil
}

func newLocalRuntime(c *cli.Context) (*localRuntime, error) {
	path := c.String("keypair")
	if path == "" {
		return nil, fmt.Errorf("keypair is required for local operations (set CUSTODIAN_KEYPAIR_PATH or use --keypair)")
	}
	logger := newLogger(c)

	ledger, err := newLedger(c, logger)
	if err != nil {
		return nil, err
	}
	kc, err := custodian.LoadKeypairCustodian(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair: %w", err)
	}

	signer := custodian.NewGateway(kc, nil, logger)
	guard := wallet.NewGuard()
	observer := wallet.ObserverFunc(func(ctx context.Context, e wallet.Event) {
		logger.InfoContext(ctx, "operation transition",
			"operation", e.Operation,
			"phase", e.Phase,
			"state", e.State,
			"signature", e.Signature,
		)
	})

	return &localRuntime{
		ledger:    ledger,
		custodian: kc,
		transfers: wallet.NewTransferWorkflow(ledger, signer, guard, observer, nil, logger),
		mints:     wallet.NewMintWorkflow(ledger, signer, guard, observer, nil, logger),
		logger:    logger,
	}, nil
}
