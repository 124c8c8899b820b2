package custodian

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Gateway hands assembled transactions to the custodian and checks that
// what comes back is fully and validly signed.
type Gateway struct {
	custodian Custodian
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewGateway creates a signing gateway for c. If metrics is nil, no metrics
// will be recorded.
func NewGateway(c Custodian, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		custodian: c,
		logger:    logger.With("custodian", c.Name()),
		metrics:   m,
	}
}

// ActiveAddress returns the custodian's connected account.
func (g *Gateway) ActiveAddress(ctx context.Context) (solanago.PublicKey, bool) {
	return g.custodian.ActiveAddress(ctx)
}

// Sign collects every required signature for tx. Co-signers sign first,
// then the custodian. Only ctx bounds how long the custodian may take.
func (g *Gateway) Sign(ctx context.Context, tx *solana.Transaction) (solana.SignedTransaction, error) {
	start := time.Now()
	signed, err := g.sign(ctx, tx)
	g.record(start, err)
	if err != nil {
		g.logger.WarnContext(ctx, "signing failed", "error", err)
		return solana.SignedTransaction{}, err
	}
	g.logger.InfoContext(ctx, "transaction signed",
		"signature", signed.Signature().String(),
		"duration", time.Since(start),
	)
	return signed, nil
}

func (g *Gateway) sign(ctx context.Context, tx *solana.Transaction) (solana.SignedTransaction, error) {
	if tx == nil || tx.Tx == nil {
		return solana.SignedTransaction{}, fmt.Errorf("%w: no transaction", ErrSigningUnsupported)
	}

	active, ok := g.custodian.ActiveAddress(ctx)
	if !ok {
		return solana.SignedTransaction{}, fmt.Errorf("%w: no active custodian session", ErrSigningDenied)
	}
	if !tx.FeePayer.Equals(active) {
		return solana.SignedTransaction{}, fmt.Errorf("%w: fee payer %s is not the active account %s", ErrSigningUnsupported, tx.FeePayer, active)
	}

	coSigners := make(map[solanago.PublicKey]*solanago.PrivateKey, len(tx.CoSigners))
	for i := range tx.CoSigners {
		key := tx.CoSigners[i]
		coSigners[key.PublicKey()] = &key
	}
	for _, signer := range tx.RequiredSigners() {
		if signer.Equals(active) {
			continue
		}
		if _, ok := coSigners[signer]; !ok {
			return solana.SignedTransaction{}, fmt.Errorf("%w: no key for required signer %s", ErrSigningUnsupported, signer)
		}
	}

	if len(coSigners) > 0 {
		if _, err := tx.Tx.PartialSign(func(pk solanago.PublicKey) *solanago.PrivateKey {
			return coSigners[pk]
		}); err != nil {
			return solana.SignedTransaction{}, fmt.Errorf("failed to add co-signer signatures: %w", err)
		}
	}

	message, err := tx.Tx.Message.MarshalBinary()
	if err != nil {
		return solana.SignedTransaction{}, fmt.Errorf("failed to encode message: %w", err)
	}

	out, err := g.custodian.Sign(ctx, tx.Tx)
	if err != nil {
		if errors.Is(err, ErrSigningDenied) || errors.Is(err, ErrSigningUnsupported) || ctx.Err() != nil {
			return solana.SignedTransaction{}, err
		}
		return solana.SignedTransaction{}, fmt.Errorf("%w: %v", ErrSigningDenied, err)
	}
	if out == nil {
		return solana.SignedTransaction{}, fmt.Errorf("%w: custodian returned no transaction", ErrSigningDenied)
	}

	returned, err := out.Message.MarshalBinary()
	if err != nil {
		return solana.SignedTransaction{}, fmt.Errorf("failed to encode signed message: %w", err)
	}
	if !bytes.Equal(message, returned) {
		return solana.SignedTransaction{}, fmt.Errorf("%w: custodian altered the transaction message", ErrSigningDenied)
	}

	if len(out.Signatures) != out.NumSigners() {
		return solana.SignedTransaction{}, fmt.Errorf("%w: expected %d signatures, got %d", ErrSigningUnsupported, out.NumSigners(), len(out.Signatures))
	}
	for i, sig := range out.Signatures {
		if sig.IsZero() {
			return solana.SignedTransaction{}, fmt.Errorf("%w: signature %d missing", ErrSigningUnsupported, i)
		}
	}
	if err := out.VerifySignatures(); err != nil {
		return solana.SignedTransaction{}, fmt.Errorf("%w: %v", ErrSigningDenied, err)
	}

	return solana.SignedTransaction{Tx: out}, nil
}

func (g *Gateway) record(start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	outcome := "signed"
	switch {
	case errors.Is(err, ErrSigningDenied):
		outcome = "denied"
	case errors.Is(err, ErrSigningUnsupported):
		outcome = "unsupported"
	case err != nil:
		outcome = "error"
	}
	g.metrics.RecordSigning(g.custodian.Name(), outcome, time.Since(start).Seconds())
}
