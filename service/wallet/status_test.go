package wallet

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/brojonat/solwallet/service/custodian"
	"github.com/brojonat/solwallet/service/solana"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{fmt.Errorf("x: %w", solana.ErrInvalidInput), KindInvalidInput},
		{fmt.Errorf("x: %w", solana.ErrNetworkUnavailable), KindNetworkUnavailable},
		{fmt.Errorf("x: %w", &solana.RejectedError{Reason: "no"}), KindRejectedByNetwork},
		{solana.ErrConfirmationTimeout, KindConfirmationTimeout},
		{fmt.Errorf("x: %w", custodian.ErrSigningDenied), KindSigningDenied},
		{custodian.ErrSigningUnsupported, KindSigningUnsupported},
		{ErrWorkflowBusy, KindWorkflowBusy},
		{&MintCreatedIssueFailedError{Mint: "m", Err: solana.ErrConfirmationTimeout}, KindMintCreatedIssueFailed},
		{context.Canceled, KindCanceled},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestStatusErr(t *testing.T) {
	assert.NoError(t, Status{State: StateSucceeded}.Err())

	err := Status{Operation: OpMint, State: StateFailed, Kind: KindMintCreatedIssueFailed, Mint: "abc", Cause: "timeout"}.Err()
	var partial *MintCreatedIssueFailedError
	assert.True(t, errors.As(err, &partial))
	assert.Equal(t, "abc", partial.Mint)
}
