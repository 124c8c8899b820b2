package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Ledger is the network capability the workflows need.
type Ledger interface {
	FetchRecencyAnchor(ctx context.Context) (solana.RecencyAnchor, error)
	Submit(ctx context.Context, signed solana.SignedTransaction) (solana.SubmissionResult, error)
	Confirm(ctx context.Context, sig solanago.Signature) (solana.Confirmation, error)
	LookupAccount(ctx context.Context, address solanago.PublicKey) (*solana.AccountInfo, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	LookupMint(ctx context.Context, mint solanago.PublicKey) (*solana.MintInfo, error)
}

// Signer is the signing capability the workflows need.
type Signer interface {
	ActiveAddress(ctx context.Context) (solanago.PublicKey, bool)
	Sign(ctx context.Context, tx *solana.Transaction) (solana.SignedTransaction, error)
}

// executor holds what transfer and mint workflows share.
type executor struct {
	ledger   Ledger
	signer   Signer
	resolver *solana.AccountResolver
	guard    *Guard
	observer Observer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func newExecutor(ledger Ledger, signer Signer, guard *Guard, observer Observer, m *metrics.Metrics, logger *slog.Logger) executor {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if guard == nil {
		guard = NewGuard()
	}
	return executor{
		ledger:   ledger,
		signer:   signer,
		resolver: solana.NewAccountResolver(ledger, logger),
		guard:    guard,
		observer: observer,
		metrics:  m,
		logger:   logger,
	}
}

// run tracks one invocation: its current state and its eventual Status.
type run struct {
	ctx      context.Context
	exec     *executor
	phase    string
	status   Status
	start    time.Time
	workflow string
	logger   *slog.Logger
}

func (e *executor) begin(ctx context.Context, operation string) *run {
	r := &run{
		ctx:      ctx,
		exec:     e,
		status:   Status{Operation: operation, State: StateIdle},
		start:    time.Now(),
		workflow: operation,
		logger:   e.logger.With("operation", operation, "operation_id", OperationID(ctx)),
	}
	r.enter(StateValidating)
	return r
}

func (r *run) enter(s State) {
	r.status.State = s
	r.logger.DebugContext(r.ctx, "operation transition", "state", s, "phase", r.phase)
	r.exec.observer.OnTransition(r.ctx, Event{
		OperationID: OperationID(r.ctx),
		Operation:   r.status.Operation,
		Phase:       r.phase,
		State:       s,
		Signature:   r.status.Signature,
		Mint:        r.status.Mint,
		Kind:        r.status.Kind,
		Cause:       r.status.Cause,
		Timestamp:   time.Now().UTC(),
	})
}

// fail ends the run with err classified into a Kind. Input rejected during
// validation returns the observer to Idle; the Status is still failed.
func (r *run) fail(err error) Status {
	r.status.Kind = Classify(err)
	r.status.Cause = err.Error()
	if r.status.State == StateValidating && r.status.Kind == KindInvalidInput {
		r.enter(StateIdle)
		r.status.State = StateFailed
	} else {
		r.enter(StateFailed)
	}
	r.finish()
	r.logger.WarnContext(r.ctx, "operation failed",
		"kind", r.status.Kind,
		"cause", r.status.Cause,
		"signature", r.status.Signature,
		"duration", time.Since(r.start),
	)
	return r.status
}

func (r *run) succeed() Status {
	r.status.Kind = KindNone
	r.status.Cause = ""
	r.enter(StateSucceeded)
	r.finish()
	r.logger.InfoContext(r.ctx, "operation succeeded",
		"signature", r.status.Signature,
		"mint", r.status.Mint,
		"duration", time.Since(r.start),
	)
	return r.status
}

func (r *run) finish() {
	if r.exec.metrics == nil {
		return
	}
	if r.status.Kind == KindWorkflowBusy {
		r.exec.metrics.RecordWorkflowBusy(r.workflow)
	}
	outcome := "succeeded"
	switch {
	case r.status.Kind == KindMintCreatedIssueFailed:
		outcome = "partial"
	case !r.status.Succeeded():
		outcome = "failed"
	}
	r.exec.metrics.RecordWorkflow(r.workflow, outcome, string(r.status.Kind), time.Since(r.start).Seconds())
}

// recoverPanic converts a panic in the caller into a failed Status.
func (r *run) recoverPanic(out *Status) {
	if p := recover(); p != nil {
		r.logger.ErrorContext(r.ctx, "operation panicked", "panic", p)
		*out = r.fail(fmt.Errorf("internal error: %v", p))
	}
}

// acquire resolves the active account and claims it in the guard.
func (r *run) acquire() (solanago.PublicKey, func(), error) {
	owner, ok := r.exec.signer.ActiveAddress(r.ctx)
	if !ok {
		return solanago.PublicKey{}, nil, fmt.Errorf("%w: no wallet connected", solana.ErrInvalidInput)
	}
	release, err := r.exec.guard.Acquire(owner.String(), r.status.Operation)
	if err != nil {
		return solanago.PublicKey{}, nil, err
	}
	return owner, release, nil
}

// execute anchors, builds, signs, submits and confirms one transaction.
// The caller has already entered StateBuilding.
func (r *run) execute(ixs []solanago.Instruction, feePayer solanago.PublicKey, coSigners ...solanago.PrivateKey) (solana.Confirmation, error) {
	ctx := r.ctx
	e := r.exec

	anchor, err := e.ledger.FetchRecencyAnchor(ctx)
	if err != nil {
		return solana.Confirmation{}, err
	}
	tx, err := solana.NewTransactionBuilder().WithCoSigners(coSigners...).Build(ixs, feePayer, anchor)
	if err != nil {
		return solana.Confirmation{}, err
	}

	r.enter(StateSigning)
	signed, err := e.signer.Sign(ctx, tx)
	if err != nil {
		return solana.Confirmation{}, err
	}

	r.enter(StateSubmitting)
	res, err := e.ledger.Submit(ctx, signed)
	if err != nil {
		return solana.Confirmation{}, err
	}
	r.status.Signature = res.Signature.String()

	r.enter(StateConfirming)
	conf, err := e.ledger.Confirm(ctx, res.Signature)
	if err != nil {
		return conf, err
	}
	if conf.Status == solana.StatusFailed {
		return conf, fmt.Errorf("transaction %s: %w", res.Signature, &solana.RejectedError{Reason: "failed on chain: " + conf.Err})
	}
	r.status.Signatures = append(r.status.Signatures, res.Signature.String())
	return conf, nil
}
