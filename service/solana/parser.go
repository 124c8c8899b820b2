package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators for the programs this wallet emits.
const (
	SystemProgramCreateAccountInstruction = 0
	SystemProgramTransferInstruction      = 2

	TokenProgramMintToInstruction          = 7
	TokenProgramInitializeMint2Instruction = 20
)

// InstructionKind names a decoded instruction.
type InstructionKind string

const (
	KindNativeTransfer   InstructionKind = "native_transfer"
	KindCreateAccount    InstructionKind = "create_account"
	KindInitializeMint   InstructionKind = "initialize_mint"
	KindCreateDependent  InstructionKind = "create_dependent_account"
	KindMintTo           InstructionKind = "mint_to"
	KindUnknownOperation InstructionKind = "unknown"
)

// InstructionSummary is a human-readable view of one compiled instruction,
// used to show a signer what it is about to approve.
type InstructionSummary struct {
	Kind      InstructionKind   `json:"kind"`
	Program   solana.PublicKey  `json:"program"`
	Amount    uint64            `json:"amount,omitempty"`
	Decimals  *uint8            `json:"decimals,omitempty"`
	From      *solana.PublicKey `json:"from,omitempty"`
	To        *solana.PublicKey `json:"to,omitempty"`
	Mint      *solana.PublicKey `json:"mint,omitempty"`
	Authority *solana.PublicKey `json:"authority,omitempty"`
}

// DescribeTransaction decodes each instruction of tx. Instructions from
// programs or variants it does not know are reported as KindUnknownOperation.
func DescribeTransaction(tx *solana.Transaction) ([]InstructionSummary, error) {
	if tx == nil {
		return nil, invalidInputf("transaction is nil")
	}
	keys := tx.Message.AccountKeys
	out := make([]InstructionSummary, 0, len(tx.Message.Instructions))

	for i, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("instruction %d: program index %d out of bounds", i, ix.ProgramIDIndex)
		}
		program := keys[ix.ProgramIDIndex]

		var (
			summary InstructionSummary
			err     error
		)
		switch {
		case program.Equals(solana.SystemProgramID):
			summary, err = parseSystemInstruction(ix, keys)
		case program.Equals(solana.TokenProgramID):
			summary, err = parseTokenInstruction(ix, keys)
		case program.Equals(solana.SPLAssociatedTokenAccountProgramID):
			summary, err = parseAssociatedAccountInstruction(ix, keys)
		default:
			summary = InstructionSummary{Kind: KindUnknownOperation}
		}
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		summary.Program = program
		out = append(out, summary)
	}
	return out, nil
}

// HasUnknownInstructions reports whether any summary could not be decoded.
func HasUnknownInstructions(summaries []InstructionSummary) bool {
	for _, s := range summaries {
		if s.Kind == KindUnknownOperation {
			return true
		}
	}
	return false
}

func accountAt(ix solana.CompiledInstruction, keys []solana.PublicKey, pos int) *solana.PublicKey {
	if pos >= len(ix.Accounts) {
		return nil
	}
	idx := ix.Accounts[pos]
	if int(idx) >= len(keys) {
		return nil
	}
	pk := keys[idx]
	return &pk
}

// parseSystemInstruction decodes transfer and create-account.
func parseSystemInstruction(ix solana.CompiledInstruction, keys []solana.PublicKey) (InstructionSummary, error) {
	// [0..4] = instruction type (u32)
	if len(ix.Data) < 4 {
		return InstructionSummary{}, fmt.Errorf("system instruction data too short: %d bytes", len(ix.Data))
	}

	switch binary.LittleEndian.Uint32(ix.Data[0:4]) {
	case SystemProgramTransferInstruction:
		// [4..12] = lamports (u64); accounts: [from, to]
		if len(ix.Data) < 12 {
			return InstructionSummary{}, fmt.Errorf("transfer instruction data too short: %d bytes", len(ix.Data))
		}
		return InstructionSummary{
			Kind:   KindNativeTransfer,
			Amount: binary.LittleEndian.Uint64(ix.Data[4:12]),
			From:   accountAt(ix, keys, 0),
			To:     accountAt(ix, keys, 1),
		}, nil

	case SystemProgramCreateAccountInstruction:
		// [4..12] = lamports, [12..20] = space, [20..52] = owner; accounts: [funder, new]
		if len(ix.Data) < 12 {
			return InstructionSummary{}, fmt.Errorf("create-account instruction data too short: %d bytes", len(ix.Data))
		}
		return InstructionSummary{
			Kind:   KindCreateAccount,
			Amount: binary.LittleEndian.Uint64(ix.Data[4:12]),
			From:   accountAt(ix, keys, 0),
			To:     accountAt(ix, keys, 1),
		}, nil

	default:
		return InstructionSummary{Kind: KindUnknownOperation}, nil
	}
}

// parseTokenInstruction decodes initialize-mint2 and mint-to.
func parseTokenInstruction(ix solana.CompiledInstruction, keys []solana.PublicKey) (InstructionSummary, error) {
	if len(ix.Data) == 0 {
		return InstructionSummary{}, fmt.Errorf("empty token instruction data")
	}

	switch ix.Data[0] {
	case TokenProgramInitializeMint2Instruction:
		// [1] = decimals, [2..34] = mint authority; accounts: [mint]
		if len(ix.Data) < 34 {
			return InstructionSummary{}, fmt.Errorf("initialize-mint instruction data too short")
		}
		decimals := ix.Data[1]
		authority := solana.PublicKeyFromBytes(ix.Data[2:34])
		return InstructionSummary{
			Kind:      KindInitializeMint,
			Decimals:  &decimals,
			Mint:      accountAt(ix, keys, 0),
			Authority: &authority,
		}, nil

	case TokenProgramMintToInstruction:
		// [1..9] = amount; accounts: [mint, destination, authority]
		if len(ix.Data) < 9 {
			return InstructionSummary{}, fmt.Errorf("mint-to instruction data too short")
		}
		return InstructionSummary{
			Kind:      KindMintTo,
			Amount:    binary.LittleEndian.Uint64(ix.Data[1:9]),
			Mint:      accountAt(ix, keys, 0),
			To:        accountAt(ix, keys, 1),
			Authority: accountAt(ix, keys, 2),
		}, nil

	default:
		return InstructionSummary{Kind: KindUnknownOperation}, nil
	}
}

// parseAssociatedAccountInstruction decodes the (idempotent or not) create
// instruction. Accounts: [payer, associated account, wallet, mint, ...].
func parseAssociatedAccountInstruction(ix solana.CompiledInstruction, keys []solana.PublicKey) (InstructionSummary, error) {
	if len(ix.Data) > 0 && ix.Data[0] > 1 {
		return InstructionSummary{Kind: KindUnknownOperation}, nil
	}
	return InstructionSummary{
		Kind:      KindCreateDependent,
		From:      accountAt(ix, keys, 0),
		To:        accountAt(ix, keys, 1),
		Authority: accountAt(ix, keys, 2),
		Mint:      accountAt(ix, keys, 3),
	}, nil
}
