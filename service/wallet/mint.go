package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brojonat/solwallet/service/metrics"
	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Phases of a mint operation.
const (
	PhaseCreateMint  = "create_mint"
	PhaseIssueSupply = "issue_supply"
)

// MintRequest describes a new fungible token. InitialSupply is in display
// units and is issued to the custodian's own account.
type MintRequest struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      int    `json:"decimals"`
	InitialSupply uint64 `json:"initial_supply"`
}

// IssueRequest issues Amount display units of an existing mint to the
// custodian. If Decimals is set it must match the mint.
type IssueRequest struct {
	Mint     string `json:"mint"`
	Amount   uint64 `json:"amount"`
	Decimals *int   `json:"decimals,omitempty"`
}

// MintRecord is what a MintRecorder stores about a created mint.
type MintRecord struct {
	Mint            string
	Name            string
	Symbol          string
	Decimals        uint8
	Authority       string
	CreateSignature string
}

// MintRecorder catalogues mints this custodian created.
type MintRecorder interface {
	RecordMint(ctx context.Context, rec MintRecord) error
	RecordIssue(ctx context.Context, mint string, status Status) error
}

// KeyGenerator produces the keypair for a new mint account.
type KeyGenerator func() (solanago.PrivateKey, error)

// MintWorkflow creates a token mint and issues its initial supply in two
// confirmed transactions.
type MintWorkflow struct {
	executor
	keygen   KeyGenerator
	recorder MintRecorder
}

// NewMintWorkflow creates a mint workflow. guard may be shared with
// TransferWorkflow.
func NewMintWorkflow(ledger Ledger, signer Signer, guard *Guard, observer Observer, m *metrics.Metrics, logger *slog.Logger) *MintWorkflow {
	return &MintWorkflow{
		executor: newExecutor(ledger, signer, guard, observer, m, logger),
		keygen:   solanago.NewRandomPrivateKey,
	}
}

// WithKeyGenerator replaces the mint keypair source.
func (w *MintWorkflow) WithKeyGenerator(g KeyGenerator) *MintWorkflow {
	w.keygen = g
	return w
}

// WithRecorder stores created mints and issuance outcomes.
func (w *MintWorkflow) WithRecorder(rec MintRecorder) *MintWorkflow {
	w.recorder = rec
	return w
}

// CreateAndIssueMint runs both phases. If the mint is created but issuance
// fails the Status kind is KindMintCreatedIssueFailed and Status.Mint is set
// so issuance can be retried with IssueSupply.
func (w *MintWorkflow) CreateAndIssueMint(ctx context.Context, req MintRequest) (status Status) {
	r := w.begin(ctx, OpMint)
	defer r.recoverPanic(&status)

	supply, err := validateMintRequest(req)
	if err != nil {
		return r.fail(err)
	}
	owner, release, err := r.acquire()
	if err != nil {
		return r.fail(err)
	}
	defer release()

	mint, err := w.createMint(r, owner, req)
	if err != nil {
		return r.fail(err)
	}

	if err := w.issue(r, owner, mint, supply); err != nil {
		status = r.fail(&MintCreatedIssueFailedError{Mint: mint.String(), Err: err})
		w.recordIssue(ctx, status)
		return status
	}

	status = r.succeed()
	w.recordIssue(ctx, status)
	return status
}

// CreateMint runs phase one only. On success Status.Mint holds the new mint.
func (w *MintWorkflow) CreateMint(ctx context.Context, req MintRequest) (status Status) {
	r := w.begin(ctx, OpCreateMint)
	defer r.recoverPanic(&status)

	if _, err := validateMintRequest(req); err != nil {
		return r.fail(err)
	}
	owner, release, err := r.acquire()
	if err != nil {
		return r.fail(err)
	}
	defer release()

	if _, err := w.createMint(r, owner, req); err != nil {
		return r.fail(err)
	}
	return r.succeed()
}

// IssueSupply runs phase two against a mint that already exists. The
// custodian must be the mint authority.
func (w *MintWorkflow) IssueSupply(ctx context.Context, req IssueRequest) (status Status) {
	r := w.begin(ctx, OpIssueSupply)
	defer r.recoverPanic(&status)

	mint, err := solana.ParseAddress(req.Mint)
	if err != nil {
		return r.fail(err)
	}
	r.status.Mint = mint.String()
	if req.Amount == 0 {
		return r.fail(fmt.Errorf("%w: amount must be a positive integer", solana.ErrInvalidInput))
	}
	if req.Decimals != nil && (*req.Decimals < 0 || *req.Decimals > solana.MaxMintDecimals) {
		return r.fail(fmt.Errorf("%w: decimals must be between 0 and %d", solana.ErrInvalidInput, solana.MaxMintDecimals))
	}

	owner, release, err := r.acquire()
	if err != nil {
		return r.fail(err)
	}
	defer release()

	info, err := w.ledger.LookupMint(ctx, mint)
	if err != nil {
		return r.fail(err)
	}
	if info == nil {
		return r.fail(fmt.Errorf("%w: mint %s does not exist", solana.ErrInvalidInput, mint))
	}
	if req.Decimals != nil && int(info.Decimals) != *req.Decimals {
		return r.fail(fmt.Errorf("%w: mint %s has %d decimals, not %d", solana.ErrInvalidInput, mint, info.Decimals, *req.Decimals))
	}
	if info.MintAuthority == nil || !info.MintAuthority.Equals(owner) {
		return r.fail(fmt.Errorf("%w: %s is not the mint authority of %s", solana.ErrInvalidInput, owner, mint))
	}
	amount, err := solana.AmountFromDisplayUnits(req.Amount, info.Decimals)
	if err != nil {
		return r.fail(err)
	}

	if err := w.issue(r, owner, mint, amount); err != nil {
		status = r.fail(err)
		w.recordIssue(ctx, status)
		return status
	}
	status = r.succeed()
	w.recordIssue(ctx, status)
	return status
}

func validateMintRequest(req MintRequest) (solana.Amount, error) {
	if strings.TrimSpace(req.Name) == "" {
		return solana.Amount{}, fmt.Errorf("%w: token name is required", solana.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return solana.Amount{}, fmt.Errorf("%w: token symbol is required", solana.ErrInvalidInput)
	}
	if req.Decimals < 0 || req.Decimals > solana.MaxMintDecimals {
		return solana.Amount{}, fmt.Errorf("%w: decimals must be between 0 and %d, got %d", solana.ErrInvalidInput, solana.MaxMintDecimals, req.Decimals)
	}
	if req.InitialSupply == 0 {
		return solana.Amount{}, fmt.Errorf("%w: initial supply must be a positive integer", solana.ErrInvalidInput)
	}
	return solana.AmountFromDisplayUnits(req.InitialSupply, uint8(req.Decimals))
}

// createMint submits and confirms {create-account, initialize-mint}.
func (w *MintWorkflow) createMint(r *run, owner solanago.PublicKey, req MintRequest) (solanago.PublicKey, error) {
	ctx := r.ctx
	r.phase = PhaseCreateMint
	r.enter(StateBuilding)

	key, err := w.keygen()
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("failed to generate mint keypair: %w", err)
	}
	mint := key.PublicKey()

	rent, err := w.ledger.MinimumBalanceForRentExemption(ctx, solana.MintAccountSize)
	if err != nil {
		return solanago.PublicKey{}, err
	}
	ixs, err := solana.CreateMintInstructions(owner, mint, uint8(req.Decimals), rent)
	if err != nil {
		return solanago.PublicKey{}, err
	}
	if _, err := r.execute(ixs, owner, key); err != nil {
		// Once submitted the mint may still land.
		if r.status.Signature != "" {
			r.status.Mint = mint.String()
		}
		return solanago.PublicKey{}, err
	}
	r.status.Mint = mint.String()

	r.logger.InfoContext(ctx, "mint created",
		"mint", mint.String(),
		"decimals", req.Decimals,
		"signature", r.status.Signature,
	)

	if w.recorder != nil {
		rec := MintRecord{
			Mint:            mint.String(),
			Name:            strings.TrimSpace(req.Name),
			Symbol:          strings.TrimSpace(req.Symbol),
			Decimals:        uint8(req.Decimals),
			Authority:       owner.String(),
			CreateSignature: r.status.Signature,
		}
		if err := w.recorder.RecordMint(ctx, rec); err != nil {
			r.logger.ErrorContext(ctx, "failed to record mint", "mint", rec.Mint, "error", err)
		}
	}
	return mint, nil
}

// issue mints amount into the owner's dependent account, creating the
// account first if needed. If the transaction carrying the creation is
// rejected and the account now exists, issuance is re-planned once without
// the creation instruction.
func (w *MintWorkflow) issue(r *run, owner, mint solanago.PublicKey, amount solana.Amount) error {
	ctx := r.ctx
	r.phase = PhaseIssueSupply
	r.status.Amount = amount.String()
	r.status.BaseUnits = amount.BaseUnits
	r.enter(StateBuilding)

	ata, err := w.resolver.DeriveDependentAccount(mint, owner)
	if err != nil {
		return err
	}
	r.status.DependentAccount = ata.String()

	needsCreation, err := w.resolver.NeedsCreation(ctx, ata)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		ixs, err := issuePlan(owner, mint, ata, amount.BaseUnits, needsCreation)
		if err != nil {
			return err
		}

		_, err = r.execute(ixs, owner)
		if err == nil {
			return nil
		}
		if !needsCreation || attempt > 0 || !errors.Is(err, solana.ErrRejectedByNetwork) {
			return err
		}

		stillMissing, lookupErr := w.resolver.NeedsCreation(ctx, ata)
		if lookupErr != nil || stillMissing {
			return err
		}
		r.logger.InfoContext(ctx, "dependent account was created concurrently, re-planning issuance",
			"account", ata.String(),
			"rejected", err,
		)
		needsCreation = false
		r.enter(StateBuilding)
	}
	return nil
}

func issuePlan(owner, mint, ata solanago.PublicKey, baseUnits uint64, createAccount bool) ([]solanago.Instruction, error) {
	var ixs []solanago.Instruction
	if createAccount {
		ix, err := solana.CreateDependentAccountInstruction(owner, owner, mint)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, ix)
	}
	ix, err := solana.MintToInstruction(mint, ata, owner, baseUnits)
	if err != nil {
		return nil, err
	}
	return append(ixs, ix), nil
}

func (w *MintWorkflow) recordIssue(ctx context.Context, status Status) {
	if w.recorder == nil || status.Mint == "" {
		return
	}
	if err := w.recorder.RecordIssue(ctx, status.Mint, status); err != nil {
		w.logger.ErrorContext(ctx, "failed to record issuance", "mint", status.Mint, "error", err)
	}
}
