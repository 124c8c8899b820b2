package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/solwallet/service/metrics"
	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// TransferRequest asks to move Amount SOL (display units, e.g. "0.5") to To.
type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// TransferWorkflow sends native currency from the custodian's account.
type TransferWorkflow struct {
	executor
}

// NewTransferWorkflow creates a transfer workflow. guard may be shared with
// other workflows so that one custodian runs one operation at a time.
func NewTransferWorkflow(ledger Ledger, signer Signer, guard *Guard, observer Observer, m *metrics.Metrics, logger *slog.Logger) *TransferWorkflow {
	return &TransferWorkflow{executor: newExecutor(ledger, signer, guard, observer, m, logger)}
}

// SendTransfer validates, builds, signs, submits and confirms a transfer.
// It never retries; the returned Status is always terminal.
func (w *TransferWorkflow) SendTransfer(ctx context.Context, req TransferRequest) (status Status) {
	r := w.begin(ctx, OpTransfer)
	defer r.recoverPanic(&status)

	to, err := solana.ParseAddress(req.To)
	if err != nil {
		return r.fail(err)
	}
	amount, err := solana.ParseAmount(req.Amount, solana.NativeDecimals)
	if err != nil {
		return r.fail(err)
	}
	if amount.IsZero() {
		return r.fail(fmt.Errorf("%w: amount must be greater than zero", solana.ErrInvalidInput))
	}
	r.status.Amount = amount.String()
	r.status.BaseUnits = amount.BaseUnits

	from, release, err := r.acquire()
	if err != nil {
		return r.fail(err)
	}
	defer release()

	r.enter(StateBuilding)
	ix, err := solana.NativeTransferInstruction(from, to, amount.BaseUnits)
	if err != nil {
		return r.fail(err)
	}
	if _, err := r.execute([]solanago.Instruction{ix}, from); err != nil {
		return r.fail(err)
	}

	return r.succeed()
}
