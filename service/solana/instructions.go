package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// MintAccountSize is the on-chain size of an SPL token mint account.
const MintAccountSize = token.MINT_SIZE

// NativeTransferInstruction moves lamports from one system account to another.
func NativeTransferInstruction(from, to solana.PublicKey, lamports uint64) (solana.Instruction, error) {
	if lamports == 0 {
		return nil, invalidInputf("transfer amount must be greater than zero")
	}
	ix, err := system.NewTransferInstruction(lamports, from, to).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer instruction: %w", err)
	}
	return ix, nil
}

// CreateMintInstructions returns the create-account and initialize-mint
// instructions for a new mint, in that order. The payer funds the account
// with rentLamports and becomes both mint and freeze authority.
func CreateMintInstructions(payer, mint solana.PublicKey, decimals uint8, rentLamports uint64) ([]solana.Instruction, error) {
	if decimals > MaxMintDecimals {
		return nil, invalidInputf("decimals must be between 0 and %d, got %d", MaxMintDecimals, decimals)
	}

	create, err := system.NewCreateAccountInstruction(
		rentLamports,
		MintAccountSize,
		solana.TokenProgramID,
		payer,
		mint,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build create-account instruction: %w", err)
	}

	initialize, err := token.NewInitializeMint2Instruction(decimals, payer, payer, mint).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build initialize-mint instruction: %w", err)
	}

	return []solana.Instruction{create, initialize}, nil
}

// CreateDependentAccountInstruction creates the associated token account of
// owner for mint, paid for by payer.
func CreateDependentAccountInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ix, err := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build create-associated-account instruction: %w", err)
	}
	return ix, nil
}

// MintToInstruction issues amount base units of mint into destination.
func MintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, invalidInputf("mint amount must be greater than zero")
	}
	ix, err := token.NewMintToInstruction(amount, mint, destination, authority, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build mint-to instruction: %w", err)
	}
	return ix, nil
}
