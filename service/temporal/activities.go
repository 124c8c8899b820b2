package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwallet/service/wallet"
	"go.temporal.io/sdk/activity"
)

// TransferInput contains the input parameters for a transfer operation.
type TransferInput struct {
	To     string `json:"to"`
	Amount string `json:"amount"` // SOL, display units
}

// MintInput contains the input parameters for creating a mint and issuing
// its initial supply.
type MintInput struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      int    `json:"decimals"`
	InitialSupply uint64 `json:"initial_supply"`
}

// IssueInput contains the input parameters for issuing supply of an
// existing mint.
type IssueInput struct {
	Mint     string `json:"mint"`
	Amount   uint64 `json:"amount"`
	Decimals *int   `json:"decimals,omitempty"`
}

// Transferer runs native transfers. Implemented by wallet.TransferWorkflow.
type Transferer interface {
	SendTransfer(ctx context.Context, req wallet.TransferRequest) wallet.Status
}

// Minter runs mint operations. Implemented by wallet.MintWorkflow.
type Minter interface {
	CreateAndIssueMint(ctx context.Context, req wallet.MintRequest) wallet.Status
	IssueSupply(ctx context.Context, req wallet.IssueRequest) wallet.Status
}

// Activities holds the dependencies needed by Temporal activities.
// Activities never return an error for an operation failure; the failure is
// carried in the returned Status so the workflow can report it verbatim.
type Activities struct {
	transfers Transferer
	mints     Minter
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
func NewActivities(transfers Transferer, mints Minter, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		transfers: transfers,
		mints:     mints,
		logger:    logger,
	}
}

// SendTransfer runs one native transfer to a terminal Status.
func (a *Activities) SendTransfer(ctx context.Context, input TransferInput) (*wallet.Status, error) {
	if a.transfers == nil {
		return nil, fmt.Errorf("transfer workflow not configured")
	}
	ctx = operationContext(ctx)
	start := time.Now()

	a.logger.InfoContext(ctx, "SendTransfer activity started",
		"operation_id", wallet.OperationID(ctx),
		"to", input.To,
		"amount", input.Amount,
	)

	status := a.transfers.SendTransfer(ctx, wallet.TransferRequest{To: input.To, Amount: input.Amount})

	a.logger.InfoContext(ctx, "SendTransfer activity finished",
		"operation_id", wallet.OperationID(ctx),
		"state", status.State,
		"kind", status.Kind,
		"signature", status.Signature,
		"duration", time.Since(start),
	)
	return &status, nil
}

// CreateAndIssueMint creates a mint and issues its initial supply. Both
// phases run in this one activity so the custodian stays reserved between
// them.
func (a *Activities) CreateAndIssueMint(ctx context.Context, input MintInput) (*wallet.Status, error) {
	if a.mints == nil {
		return nil, fmt.Errorf("mint workflow not configured")
	}
	ctx = operationContext(ctx)
	start := time.Now()

	a.logger.InfoContext(ctx, "CreateAndIssueMint activity started",
		"operation_id", wallet.OperationID(ctx),
		"symbol", input.Symbol,
		"decimals", input.Decimals,
		"initial_supply", input.InitialSupply,
	)

	status := a.mints.CreateAndIssueMint(ctx, wallet.MintRequest{
		Name:          input.Name,
		Symbol:        input.Symbol,
		Decimals:      input.Decimals,
		InitialSupply: input.InitialSupply,
	})

	a.logger.InfoContext(ctx, "CreateAndIssueMint activity finished",
		"operation_id", wallet.OperationID(ctx),
		"state", status.State,
		"kind", status.Kind,
		"mint", status.Mint,
		"duration", time.Since(start),
	)
	return &status, nil
}

// IssueSupply issues more supply of an existing mint.
func (a *Activities) IssueSupply(ctx context.Context, input IssueInput) (*wallet.Status, error) {
	if a.mints == nil {
		return nil, fmt.Errorf("mint workflow not configured")
	}
	ctx = operationContext(ctx)

	status := a.mints.IssueSupply(ctx, wallet.IssueRequest{
		Mint:     input.Mint,
		Amount:   input.Amount,
		Decimals: input.Decimals,
	})

	a.logger.InfoContext(ctx, "IssueSupply activity finished",
		"operation_id", wallet.OperationID(ctx),
		"mint", input.Mint,
		"state", status.State,
		"kind", status.Kind,
	)
	return &status, nil
}

// operationContext tags ctx with the workflow ID so every transition event
// can be matched to the operation a caller started.
func operationContext(ctx context.Context) context.Context {
	if !activity.IsActivity(ctx) {
		return ctx
	}
	info := activity.GetInfo(ctx)
	return wallet.WithOperationID(ctx, info.WorkflowExecution.ID)
}
