// Package custodian delegates transaction signing to the key-custody wallet
// that owns the fee-paying account.
package custodian

import (
	"context"
	"errors"

	solanago "github.com/gagliardetto/solana-go"
)

var (
	// ErrSigningDenied means the custodian refused to sign or has no active session.
	ErrSigningDenied = errors.New("signing denied")

	// ErrSigningUnsupported means the custodian cannot produce every
	// signature the transaction requires.
	ErrSigningUnsupported = errors.New("signing unsupported")
)

// Custodian is a key-custody capability: it exposes the active account and
// signs transactions for it. Sign may block until a human approves.
type Custodian interface {
	// Name identifies the custodian in logs and metrics.
	Name() string

	// ActiveAddress returns the connected account, or false if there is no
	// active session.
	ActiveAddress(ctx context.Context) (solanago.PublicKey, bool)

	// Sign adds the custodian's signature to tx and returns the signed
	// transaction. The message must not be altered.
	Sign(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error)
}
