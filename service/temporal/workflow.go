package temporal

import (
	"time"

	"github.com/brojonat/solwallet/service/wallet"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// StatusQuery is the query type answered by every operation workflow.
const StatusQuery = "status"

// Activity time limits. Each covers signing plus every confirmation the
// operation waits for.
var (
	TransferTimeout = 5 * time.Minute
	MintTimeout     = 10 * time.Minute
	IssueTimeout    = 5 * time.Minute
)

// Progress is the answer to StatusQuery.
type Progress struct {
	Operation string         `json:"operation"`
	Running   bool           `json:"running"`
	StartedAt time.Time      `json:"started_at"`
	Status    *wallet.Status `json:"status,omitempty"`
}

// TransferWorkflow sends native currency from the custodian.
func TransferWorkflow(ctx workflow.Context, input TransferInput) (*wallet.Status, error) {
	return runOperation(ctx, wallet.OpTransfer, TransferTimeout, func(ctx workflow.Context) workflow.Future {
		return workflow.ExecuteActivity(ctx, a.SendTransfer, input)
	})
}

// MintWorkflow creates a mint and issues its initial supply.
func MintWorkflow(ctx workflow.Context, input MintInput) (*wallet.Status, error) {
	return runOperation(ctx, wallet.OpMint, MintTimeout, func(ctx workflow.Context) workflow.Future {
		return workflow.ExecuteActivity(ctx, a.CreateAndIssueMint, input)
	})
}

// IssueSupplyWorkflow issues supply of an existing mint, typically after a
// MintWorkflow ended with mint_created_issue_failed.
func IssueSupplyWorkflow(ctx workflow.Context, input IssueInput) (*wallet.Status, error) {
	return runOperation(ctx, wallet.OpIssueSupply, IssueTimeout, func(ctx workflow.Context) workflow.Future {
		return workflow.ExecuteActivity(ctx, a.IssueSupply, input)
	})
}

// runOperation executes one operation activity exactly once. Submitting a
// transaction is not idempotent, so the activity is never retried; an
// activity failure becomes a failed Status rather than a workflow error.
func runOperation(ctx workflow.Context, operation string, timeout time.Duration, execute func(workflow.Context) workflow.Future) (*wallet.Status, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("operation workflow started", "operation", operation)

	progress := Progress{
		Operation: operation,
		Running:   true,
		StartedAt: workflow.Now(ctx),
	}
	if err := workflow.SetQueryHandler(ctx, StatusQuery, func() (Progress, error) {
		return progress, nil
	}); err != nil {
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var status *wallet.Status
	if err := execute(ctx).Get(ctx, &status); err != nil {
		logger.Error("operation activity failed", "operation", operation, "error", err)
		status = &wallet.Status{
			Operation: operation,
			State:     wallet.StateFailed,
			Kind:      wallet.KindInternal,
			Cause:     err.Error(),
		}
	}
	if status == nil {
		status = &wallet.Status{
			Operation: operation,
			State:     wallet.StateFailed,
			Kind:      wallet.KindInternal,
			Cause:     "operation returned no status",
		}
	}

	progress.Running = false
	progress.Status = status

	logger.Info("operation workflow completed",
		"operation", operation,
		"state", status.State,
		"kind", status.Kind,
	)
	return status, nil
}
