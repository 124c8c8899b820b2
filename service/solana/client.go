package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// Commitment used for every read and for preflight simulation.
const defaultCommitment = rpc.CommitmentConfirmed

// Client is the ledger facade: recency anchors, submission, confirmation and
// account lookups. It holds no per-transaction state.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	confirm  ConfirmOptions
}

// NewClient creates a new Solana ledger client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		confirm:  DefaultConfirmOptions(),
	}
}

// WithConfirmOptions overrides the confirmation polling schedule.
func (c *Client) WithConfirmOptions(opts ConfirmOptions) *Client {
	c.confirm = opts
	return c
}

// recordCall records RPC metrics for a single call.
func (c *Client) recordCall(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// FetchRecencyAnchor fetches the latest blockhash. It does not retry.
func (c *Client) FetchRecencyAnchor(ctx context.Context) (RecencyAnchor, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, defaultCommitment)
	c.recordCall("GetLatestBlockhash", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to fetch latest blockhash", "error", err)
		return RecencyAnchor{}, classifyRPCError("get latest blockhash", err)
	}
	if out == nil || out.Value == nil {
		return RecencyAnchor{}, fmt.Errorf("get latest blockhash: %w: empty response", ErrNetworkUnavailable)
	}

	anchor := RecencyAnchor{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
		FetchedAt:            time.Now().UTC(),
	}

	c.logger.DebugContext(ctx, "fetched recency anchor",
		"blockhash", anchor.Blockhash.String(),
		"last_valid_block_height", anchor.LastValidBlockHeight,
	)
	return anchor, nil
}

// Submit broadcasts a signed transaction. Success means the node accepted
// the bytes for relay, not that the transaction landed.
func (c *Client) Submit(ctx context.Context, signed SignedTransaction) (SubmissionResult, error) {
	if signed.Tx == nil || len(signed.Tx.Signatures) == 0 {
		return SubmissionResult{}, invalidInputf("transaction is not signed")
	}

	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, signed.Tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: defaultCommitment,
	})
	c.recordCall("SendTransaction", start, err)
	if err != nil {
		classified := classifyRPCError("send transaction", err)
		c.logger.ErrorContext(ctx, "failed to submit transaction",
			"signature", signed.Signature().String(),
			"error", classified,
		)
		return SubmissionResult{}, classified
	}

	c.logger.InfoContext(ctx, "transaction submitted", "signature", sig.String())
	return SubmissionResult{Signature: sig}, nil
}

// LookupAccount returns the account at address, or nil if it does not exist.
func (c *Client) LookupAccount(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfo(ctx, address, defaultCommitment)
	if errors.Is(err, rpc.ErrNotFound) {
		c.recordCall("GetAccountInfo", start, nil)
		c.logger.DebugContext(ctx, "account not found", "address", address.String())
		return nil, nil
	}
	c.recordCall("GetAccountInfo", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to look up account",
			"address", address.String(),
			"error", err,
		)
		return nil, classifyRPCError("get account info", err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}

	return &AccountInfo{
		Address:  address,
		Lamports: out.Value.Lamports,
		Owner:    out.Value.Owner,
		Data:     out.GetBinary(),
	}, nil
}

// MinimumBalanceForRentExemption returns the lamports an account of size
// bytes must hold to be rent exempt.
func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, defaultCommitment)
	c.recordCall("GetMinimumBalanceForRentExemption", start, err)
	if err != nil {
		return 0, classifyRPCError("get minimum balance for rent exemption", err)
	}
	return lamports, nil
}

// LookupMint fetches and decodes an SPL token mint. It returns nil if the
// account does not exist and ErrInvalidInput if the account is not a mint.
func (c *Client) LookupMint(ctx context.Context, mint solana.PublicKey) (*MintInfo, error) {
	info, err := c.LookupAccount(ctx, mint)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return DecodeMint(info)
}

// DecodeMint decodes the data of a token-program owned mint account.
func DecodeMint(info *AccountInfo) (*MintInfo, error) {
	if !info.Owner.Equals(solana.TokenProgramID) {
		return nil, invalidInputf("account %s is owned by %s, not the token program", info.Address, info.Owner)
	}
	if len(info.Data) < token.MINT_SIZE {
		return nil, invalidInputf("account %s is not a mint: %d bytes of data", info.Address, len(info.Data))
	}

	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(info.Data)); err != nil {
		return nil, fmt.Errorf("failed to decode mint %s: %w", info.Address, err)
	}

	return &MintInfo{
		Address:         info.Address,
		Supply:          mint.Supply,
		Decimals:        mint.Decimals,
		MintAuthority:   mint.MintAuthority,
		FreezeAuthority: mint.FreezeAuthority,
		IsInitialized:   mint.IsInitialized,
	}, nil
}
