// Package wallet runs the caller-facing wallet operations: native
// transfers and mint creation with initial issuance. Each invocation ends
// in exactly one terminal Status.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/brojonat/solwallet/service/custodian"
	"github.com/brojonat/solwallet/service/solana"
)

// State is a step of an operation's lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateBuilding   State = "building"
	StateSigning    State = "signing"
	StateSubmitting State = "submitting"
	StateConfirming State = "confirming"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transition follows s.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Kind classifies why an operation failed.
type Kind string

const (
	KindNone                   Kind = ""
	KindInvalidInput           Kind = "invalid_input"
	KindNetworkUnavailable     Kind = "network_unavailable"
	KindRejectedByNetwork      Kind = "rejected_by_network"
	KindConfirmationTimeout    Kind = "confirmation_timeout"
	KindSigningDenied          Kind = "signing_denied"
	KindSigningUnsupported     Kind = "signing_unsupported"
	KindMintCreatedIssueFailed Kind = "mint_created_issue_failed"
	KindWorkflowBusy           Kind = "workflow_busy"
	KindCanceled               Kind = "canceled"
	KindInternal               Kind = "internal"
)

// Operation names.
const (
	OpTransfer    = "transfer"
	OpCreateMint  = "create_mint"
	OpIssueSupply = "issue_supply"
	OpMint        = "create_and_issue_mint"
)

// ErrWorkflowBusy means another operation is already in flight for the
// same custodian account.
var ErrWorkflowBusy = errors.New("workflow busy")

// MintCreatedIssueFailedError reports that the mint exists on chain but the
// initial supply was not issued. Issuance can be retried against Mint.
type MintCreatedIssueFailedError struct {
	Mint string
	Err  error
}

func (e *MintCreatedIssueFailedError) Error() string {
	return fmt.Sprintf("mint %s created but issuing supply failed: %v", e.Mint, e.Err)
}

func (e *MintCreatedIssueFailedError) Unwrap() error { return e.Err }

// Status is the terminal outcome of one operation.
type Status struct {
	Operation string `json:"operation"`
	State     State  `json:"state"`
	Kind      Kind   `json:"kind,omitempty"`
	Cause     string `json:"cause,omitempty"`

	// Signature of the last transaction submitted, if any.
	Signature string `json:"signature,omitempty"`
	// Signatures of every confirmed transaction, in order.
	Signatures []string `json:"signatures,omitempty"`

	Mint             string `json:"mint,omitempty"`
	DependentAccount string `json:"dependent_account,omitempty"`
	Amount           string `json:"amount,omitempty"`
	BaseUnits        uint64 `json:"base_units,omitempty"`
}

// Succeeded reports whether the operation completed.
func (s Status) Succeeded() bool {
	return s.State == StateSucceeded
}

// Err returns the failure as an error, or nil on success.
func (s Status) Err() error {
	if s.Succeeded() {
		return nil
	}
	if s.Kind == KindMintCreatedIssueFailed {
		return &MintCreatedIssueFailedError{Mint: s.Mint, Err: errors.New(s.Cause)}
	}
	return fmt.Errorf("%s %s: %s", s.Operation, s.Kind, s.Cause)
}

// Classify maps an error from any stage onto a Kind.
func Classify(err error) Kind {
	var partial *MintCreatedIssueFailedError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &partial):
		return KindMintCreatedIssueFailed
	case errors.Is(err, ErrWorkflowBusy):
		return KindWorkflowBusy
	case errors.Is(err, solana.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, custodian.ErrSigningDenied):
		return KindSigningDenied
	case errors.Is(err, custodian.ErrSigningUnsupported):
		return KindSigningUnsupported
	case errors.Is(err, solana.ErrRejectedByNetwork):
		return KindRejectedByNetwork
	case errors.Is(err, solana.ErrConfirmationTimeout):
		return KindConfirmationTimeout
	case errors.Is(err, solana.ErrNetworkUnavailable):
		return KindNetworkUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
