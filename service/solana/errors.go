package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Error kinds surfaced by the ledger layer. Callers match them with errors.Is.
var (
	// ErrInvalidInput is a caller error detected before any network call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNetworkUnavailable means the RPC endpoint could not be reached.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrRejectedByNetwork means the endpoint answered and refused the request.
	ErrRejectedByNetwork = errors.New("rejected by network")

	// ErrConfirmationTimeout means a submitted transaction did not reach a
	// terminal status before the confirmation deadline.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// RejectedError carries the network's reason for refusing a transaction.
// It matches ErrRejectedByNetwork.
type RejectedError struct {
	Reason string
	Code   int
	Logs   []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRejectedByNetwork, e.Reason)
}

// Is lets errors.Is(err, ErrRejectedByNetwork) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejectedByNetwork
}

// invalidInputf returns an error wrapping ErrInvalidInput.
func invalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// classifyRPCError maps a raw RPC error onto the error kinds above.
// A JSON-RPC error object means the node answered and refused; anything
// else (transport failure, bad gateway, timeout) is treated as unreachable.
func classifyRPCError(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", method, err)
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", method, &RejectedError{
			Reason: rpcErr.Message,
			Code:   rpcErr.Code,
			Logs:   logsFromRPCErrorData(rpcErr.Data),
		})
	}

	return fmt.Errorf("%s: %w: %v", method, ErrNetworkUnavailable, err)
}

// logsFromRPCErrorData extracts simulation logs from a preflight failure.
func logsFromRPCErrorData(data interface{}) []string {
	m, ok := data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := m["logs"].([]interface{})
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}
