package custodian

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// KeypairCustodian signs with a key held in process memory, typically loaded
// from a solana-keygen JSON file. It only signs instructions it can decode.
type KeypairCustodian struct {
	key    solanago.PrivateKey
	logger *slog.Logger

	mu     sync.RWMutex
	locked bool
}

// NewKeypairCustodian wraps an in-memory private key.
func NewKeypairCustodian(key solanago.PrivateKey, logger *slog.Logger) *KeypairCustodian {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeypairCustodian{key: key, logger: logger}
}

// LoadKeypairCustodian reads a solana-keygen JSON keypair file.
func LoadKeypairCustodian(path string, logger *slog.Logger) (*KeypairCustodian, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return NewKeypairCustodian(key, logger), nil
}

func (k *KeypairCustodian) Name() string { return "keypair" }

// Lock ends the session: ActiveAddress reports absent and Sign is denied
// until Unlock.
func (k *KeypairCustodian) Lock() {
	k.mu.Lock()
	k.locked = true
	k.mu.Unlock()
}

// Unlock resumes the session.
func (k *KeypairCustodian) Unlock() {
	k.mu.Lock()
	k.locked = false
	k.mu.Unlock()
}

func (k *KeypairCustodian) isLocked() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.locked
}

func (k *KeypairCustodian) ActiveAddress(ctx context.Context) (solanago.PublicKey, bool) {
	if k.isLocked() {
		return solanago.PublicKey{}, false
	}
	return k.key.PublicKey(), true
}

func (k *KeypairCustodian) Sign(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	if k.isLocked() {
		return nil, fmt.Errorf("%w: keypair is locked", ErrSigningDenied)
	}

	summaries, err := solana.DescribeTransaction(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningUnsupported, err)
	}
	if solana.HasUnknownInstructions(summaries) {
		return nil, fmt.Errorf("%w: transaction contains instructions this custodian cannot review", ErrSigningUnsupported)
	}

	own := k.key.PublicKey()
	required := false
	for _, signer := range tx.Message.Signers() {
		if signer.Equals(own) {
			required = true
			break
		}
	}
	if !required {
		return nil, fmt.Errorf("%w: %s is not a signer of this transaction", ErrSigningUnsupported, own)
	}

	k.logger.DebugContext(ctx, "signing transaction",
		"signer", own.String(),
		"instructions", summaries,
	)

	if _, err := tx.PartialSign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(own) {
			return &k.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return tx, nil
}
