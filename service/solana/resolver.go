package solana

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// AccountLookup is the subset of Client the resolver needs.
type AccountLookup interface {
	LookupAccount(ctx context.Context, address solana.PublicKey) (*AccountInfo, error)
}

// AccountResolver derives associated token accounts and checks whether they
// exist on chain.
type AccountResolver struct {
	ledger AccountLookup
	logger *slog.Logger
}

// NewAccountResolver creates a resolver backed by ledger.
func NewAccountResolver(ledger AccountLookup, logger *slog.Logger) *AccountResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountResolver{ledger: ledger, logger: logger}
}

// DeriveDependentAccount returns the associated token account of owner for
// mint. It makes no network calls.
func (r *AccountResolver) DeriveDependentAccount(mint, owner solana.PublicKey) (solana.PublicKey, error) {
	return DeriveDependentAccount(mint, owner)
}

// DeriveDependentAccount is the package-level form of
// AccountResolver.DeriveDependentAccount.
func DeriveDependentAccount(mint, owner solana.PublicKey) (solana.PublicKey, error) {
	if mint.IsZero() {
		return solana.PublicKey{}, invalidInputf("mint address is required")
	}
	if owner.IsZero() {
		return solana.PublicKey{}, invalidInputf("owner address is required")
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token account: %w", err)
	}
	return ata, nil
}

// NeedsCreation reports whether no account exists at address.
func (r *AccountResolver) NeedsCreation(ctx context.Context, address solana.PublicKey) (bool, error) {
	info, err := r.ledger.LookupAccount(ctx, address)
	if err != nil {
		return false, fmt.Errorf("failed to check account %s: %w", address, err)
	}
	needs := info == nil
	r.logger.DebugContext(ctx, "checked dependent account",
		"address", address.String(),
		"needs_creation", needs,
	)
	return needs, nil
}
