package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TransactionBuilder assembles unsigned transactions. It never fetches an
// anchor itself and never reorders instructions.
type TransactionBuilder struct {
	coSigners []solana.PrivateKey
}

// NewTransactionBuilder returns a builder with no co-signers.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{}
}

// WithCoSigners returns a builder whose transactions carry the given keys,
// which must sign alongside the custodian.
func (b *TransactionBuilder) WithCoSigners(keys ...solana.PrivateKey) *TransactionBuilder {
	cs := make([]solana.PrivateKey, 0, len(b.coSigners)+len(keys))
	cs = append(cs, b.coSigners...)
	cs = append(cs, keys...)
	return &TransactionBuilder{coSigners: cs}
}

// Build assembles instructions into a transaction paid for by feePayer and
// anchored to anchor.
func (b *TransactionBuilder) Build(instructions []solana.Instruction, feePayer solana.PublicKey, anchor RecencyAnchor) (*Transaction, error) {
	if len(instructions) == 0 {
		return nil, invalidInputf("transaction requires at least one instruction")
	}
	if feePayer.IsZero() {
		return nil, invalidInputf("fee payer is required")
	}
	if anchor.IsZero() {
		return nil, invalidInputf("recency anchor is required")
	}
	for i, ix := range instructions {
		if ix == nil {
			return nil, invalidInputf("instruction %d is nil", i)
		}
	}

	tx, err := solana.NewTransaction(instructions, anchor.Blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble transaction: %w", err)
	}

	return &Transaction{
		Tx:        tx,
		FeePayer:  feePayer,
		Anchor:    anchor,
		CoSigners: b.coSigners,
	}, nil
}

// RequiredSigners lists the accounts that must sign the transaction, fee
// payer first.
func (t *Transaction) RequiredSigners() []solana.PublicKey {
	if t == nil || t.Tx == nil {
		return nil
	}
	return t.Tx.Message.Signers()
}
