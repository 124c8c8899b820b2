package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwallet/service/wallet"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// ErrOperationNotFound is returned when no workflow has the requested ID.
var ErrOperationNotFound = errors.New("operation not found")

// OperationRef identifies a started operation.
type OperationRef struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// OperationState is the current view of an operation. Status is set once
// the operation is terminal.
type OperationState struct {
	WorkflowID string         `json:"workflow_id"`
	RunID      string         `json:"run_id"`
	Operation  string         `json:"operation"`
	Running    bool           `json:"running"`
	StartedAt  time.Time      `json:"started_at"`
	ClosedAt   *time.Time     `json:"closed_at,omitempty"`
	Status     *wallet.Status `json:"status,omitempty"`
}

// Operations starts and inspects operation workflows.
type Operations interface {
	StartTransfer(ctx context.Context, input TransferInput) (*OperationRef, error)
	StartMint(ctx context.Context, input MintInput) (*OperationRef, error)
	StartIssue(ctx context.Context, input IssueInput) (*OperationRef, error)
	OperationStatus(ctx context.Context, workflowID, runID string) (*OperationState, error)
}

// Client starts operation workflows on a Temporal cluster.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

var _ Operations = (*Client)(nil)

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return NewClientFromSDK(c, taskQueue, logger), nil
}

// NewClientFromSDK wraps an existing SDK client.
func NewClientFromSDK(c client.Client, taskQueue string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: c, taskQueue: taskQueue, logger: logger}
}

// StartTransfer starts a TransferWorkflow.
func (c *Client) StartTransfer(ctx context.Context, input TransferInput) (*OperationRef, error) {
	return c.start(ctx, "transfer", TransferWorkflow, input)
}

// StartMint starts a MintWorkflow.
func (c *Client) StartMint(ctx context.Context, input MintInput) (*OperationRef, error) {
	return c.start(ctx, "mint", MintWorkflow, input)
}

// StartIssue starts an IssueSupplyWorkflow.
func (c *Client) StartIssue(ctx context.Context, input IssueInput) (*OperationRef, error) {
	return c.start(ctx, "issue", IssueSupplyWorkflow, input)
}

func (c *Client) start(ctx context.Context, prefix string, workflowFn any, input any) (*OperationRef, error) {
	id := prefix + "-" + uuid.NewString()
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
	}, workflowFn, input)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to start workflow", "workflow_id", id, "error", err)
		return nil, fmt.Errorf("failed to start %s workflow: %w", prefix, err)
	}

	c.logger.InfoContext(ctx, "workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return &OperationRef{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

// OperationStatus describes an operation. A running operation reports its
// progress; a completed one returns its terminal Status.
func (c *Client) OperationStatus(ctx context.Context, workflowID, runID string) (*OperationState, error) {
	desc, err := c.client.DescribeWorkflowExecution(ctx, workflowID, runID)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to describe workflow %q: %w", workflowID, err)
	}

	info := desc.GetWorkflowExecutionInfo()
	state := &OperationState{
		WorkflowID: workflowID,
		RunID:      info.GetExecution().GetRunId(),
		Operation:  operationName(info.GetType().GetName()),
	}
	if ts := info.GetStartTime(); ts != nil {
		state.StartedAt = ts.AsTime()
	}
	if ts := info.GetCloseTime(); ts != nil {
		closed := ts.AsTime()
		state.ClosedAt = &closed
	}

	switch info.GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		state.Running = true
		val, err := c.client.QueryWorkflow(ctx, workflowID, state.RunID, StatusQuery)
		if err != nil {
			c.logger.WarnContext(ctx, "status query failed", "workflow_id", workflowID, "error", err)
			return state, nil
		}
		var progress Progress
		if err := val.Get(&progress); err == nil {
			state.Status = progress.Status
		}
		return state, nil

	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var status *wallet.Status
		if err := c.client.GetWorkflow(ctx, workflowID, state.RunID).Get(ctx, &status); err != nil {
			return nil, fmt.Errorf("failed to get result of workflow %q: %w", workflowID, err)
		}
		state.Status = status
		return state, nil

	default:
		kind := wallet.KindInternal
		if info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED ||
			info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED {
			kind = wallet.KindCanceled
		}
		state.Status = &wallet.Status{
			Operation: state.Operation,
			State:     wallet.StateFailed,
			Kind:      kind,
			Cause:     "workflow " + info.GetStatus().String(),
		}
		return state, nil
	}
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

func operationName(workflowType string) string {
	switch workflowType {
	case "TransferWorkflow":
		return wallet.OpTransfer
	case "MintWorkflow":
		return wallet.OpMint
	case "IssueSupplyWorkflow":
		return wallet.OpIssueSupply
	default:
		return workflowType
	}
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
