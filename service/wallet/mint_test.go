package wallet

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMintRequest() MintRequest {
	return MintRequest{Name: "Test Token", Symbol: "TEST", Decimals: 6, InitialSupply: 1_000}
}

func TestCreateAndIssueMint_Succeeds(t *testing.T) {
	h := newHarness(t)
	mintKey := solanago.NewWallet().PrivateKey
	rec := &memoryRecorder{}

	status := h.mint(mintKey).WithRecorder(rec).CreateAndIssueMint(context.Background(), validMintRequest())

	require.True(t, status.Succeeded(), "cause: %s", status.Cause)
	assert.Equal(t, mintKey.PublicKey().String(), status.Mint)
	assert.Equal(t, uint64(1_000_000_000), status.BaseUnits)
	assert.Len(t, status.Signatures, 2)

	subs := h.ledger.submissions()
	require.Len(t, subs, 2)
	assert.Equal(t,
		[]solana.InstructionKind{solana.KindCreateAccount, solana.KindInitializeMint},
		instructionKinds(t, subs[0]))
	assert.Equal(t,
		[]solana.InstructionKind{solana.KindCreateDependent, solana.KindMintTo},
		instructionKinds(t, subs[1]))

	// The mint keypair co-signs phase one.
	assert.ElementsMatch(t,
		[]solanago.PublicKey{h.key.PublicKey(), mintKey.PublicKey()},
		[]solanago.PublicKey(subs[0].Tx.Message.Signers()))
	assert.NoError(t, subs[0].Tx.VerifySignatures())

	summaries, err := solana.DescribeTransaction(subs[1].Tx)
	require.NoError(t, err)
	ata, err := solana.DeriveDependentAccount(mintKey.PublicKey(), h.key.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, ata, *summaries[1].To)
	assert.Equal(t, uint64(1_000_000_000), summaries[1].Amount)
	assert.Equal(t, ata.String(), status.DependentAccount)

	require.Len(t, rec.mints, 1)
	assert.Equal(t, "TEST", rec.mints[0].Symbol)
	assert.Equal(t, uint8(6), rec.mints[0].Decimals)
	assert.Equal(t, h.key.PublicKey().String(), rec.mints[0].Authority)
	assert.True(t, rec.issues[status.Mint].Succeeded())
}

func TestCreateAndIssueMint_InvalidInputMakesNoNetworkCalls(t *testing.T) {
	tests := []struct {
		name string
		req  MintRequest
	}{
		{"decimals above nine", MintRequest{Name: "A", Symbol: "A", Decimals: 11, InitialSupply: 1}},
		{"negative decimals", MintRequest{Name: "A", Symbol: "A", Decimals: -1, InitialSupply: 1}},
		{"blank name", MintRequest{Name: "  ", Symbol: "A", Decimals: 0, InitialSupply: 1}},
		{"blank symbol", MintRequest{Name: "A", Symbol: "", Decimals: 0, InitialSupply: 1}},
		{"zero supply", MintRequest{Name: "A", Symbol: "A", Decimals: 0, InitialSupply: 0}},
		{"supply overflows base units", MintRequest{Name: "A", Symbol: "A", Decimals: 9, InitialSupply: 1 << 62}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			status := h.mint(solanago.NewWallet().PrivateKey).CreateAndIssueMint(context.Background(), tt.req)

			assert.Equal(t, KindInvalidInput, status.Kind)
			assert.Equal(t, 0, h.ledger.callCount())
			assert.Equal(t, 0, h.signer.count())
		})
	}
}

func TestCreateAndIssueMint_PhaseOneFailureSkipsPhaseTwo(t *testing.T) {
	h := newHarness(t)
	h.ledger.submitErrs[0] = fmt.Errorf("send transaction: %w", &solana.RejectedError{Reason: "insufficient funds for rent"})

	status := h.mint(solanago.NewWallet().PrivateKey).CreateAndIssueMint(context.Background(), validMintRequest())

	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, KindRejectedByNetwork, status.Kind)
	assert.Empty(t, status.Mint)
	assert.Equal(t, 1, h.signer.count(), "phase two is never signed")
	assert.Empty(t, h.ledger.submissions())
}

func TestCreateAndIssueMint_PhaseOneTimeoutKeepsMintAddress(t *testing.T) {
	h := newHarness(t)
	mintKey := solanago.NewWallet().PrivateKey
	h.ledger.confirmErrs[0] = solana.ErrConfirmationTimeout

	status := h.mint(mintKey).CreateAndIssueMint(context.Background(), validMintRequest())

	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, KindConfirmationTimeout, status.Kind)
	assert.Equal(t, mintKey.PublicKey().String(), status.Mint)
	assert.NotEmpty(t, status.Signature)
	assert.Len(t, h.ledger.submissions(), 1, "phase two is never submitted")
}

func TestCreateAndIssueMint_PhaseTwoFailureIsPartial(t *testing.T) {
	h := newHarness(t)
	mintKey := solanago.NewWallet().PrivateKey
	h.ledger.confirmErrs[1] = solana.ErrConfirmationTimeout
	rec := &memoryRecorder{}

	status := h.mint(mintKey).WithRecorder(rec).CreateAndIssueMint(context.Background(), validMintRequest())

	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, KindMintCreatedIssueFailed, status.Kind)
	assert.Equal(t, mintKey.PublicKey().String(), status.Mint)
	assert.Contains(t, status.Cause, "confirmation timeout")

	var partial *MintCreatedIssueFailedError
	require.True(t, errors.As(status.Err(), &partial))
	assert.Equal(t, mintKey.PublicKey().String(), partial.Mint)

	assert.Len(t, rec.mints, 1)
	assert.False(t, rec.issues[status.Mint].Succeeded())
}

func TestCreateAndIssueMint_ExistingDependentAccountIsNotRecreated(t *testing.T) {
	h := newHarness(t)
	mintKey := solanago.NewWallet().PrivateKey
	ata, err := solana.DeriveDependentAccount(mintKey.PublicKey(), h.key.PublicKey())
	require.NoError(t, err)
	h.ledger.setAccount(ata)

	status := h.mint(mintKey).CreateAndIssueMint(context.Background(), validMintRequest())

	require.True(t, status.Succeeded(), "cause: %s", status.Cause)
	subs := h.ledger.submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, []solana.InstructionKind{solana.KindMintTo}, instructionKinds(t, subs[1]))
}

func TestCreateAndIssueMint_DuplicateDependentAccountCreation(t *testing.T) {
	h := newHarness(t)
	mintKey := solanago.NewWallet().PrivateKey
	ata, err := solana.DeriveDependentAccount(mintKey.PublicKey(), h.key.PublicKey())
	require.NoError(t, err)

	// Someone else creates the account between our check and our submission.
	h.ledger.onSubmit = func(n int, _ solana.SignedTransaction) {
		if n == 1 {
			h.ledger.setAccount(ata)
		}
	}
	h.ledger.submitErrs[1] = fmt.Errorf("send transaction: %w", &solana.RejectedError{Reason: "account already in use"})

	status := h.mint(mintKey).CreateAndIssueMint(context.Background(), validMintRequest())

	require.True(t, status.Succeeded(), "cause: %s", status.Cause)
	subs := h.ledger.submissions()
	require.Len(t, subs, 2, "the rejected attempt had no effect")
	assert.Equal(t, []solana.InstructionKind{solana.KindMintTo}, instructionKinds(t, subs[1]))
	assert.Equal(t, 3, h.signer.count())
}

func TestCreateAndIssueMint_RejectionWithoutConcurrentCreationFails(t *testing.T) {
	h := newHarness(t)
	h.ledger.submitErrs[1] = fmt.Errorf("send transaction: %w", &solana.RejectedError{Reason: "custom program error"})

	status := h.mint(solanago.NewWallet().PrivateKey).CreateAndIssueMint(context.Background(), validMintRequest())

	assert.Equal(t, KindMintCreatedIssueFailed, status.Kind)
	assert.Equal(t, 2, h.signer.count(), "no re-plan when the account is still missing")
}

func TestCreateMint_PhaseOneOnly(t *testing.T) {
	h := newHarness(t)
	mintKey := solanago.NewWallet().PrivateKey

	status := h.mint(mintKey).CreateMint(context.Background(), validMintRequest())

	require.True(t, status.Succeeded(), "cause: %s", status.Cause)
	assert.Equal(t, OpCreateMint, status.Operation)
	assert.Equal(t, mintKey.PublicKey().String(), status.Mint)
	assert.Len(t, h.ledger.submissions(), 1)
}

func TestIssueSupply(t *testing.T) {
	ctx := context.Background()

	t.Run("issues to an existing mint", func(t *testing.T) {
		h := newHarness(t)
		mint := solanago.NewWallet().PublicKey()
		authority := h.key.PublicKey()
		h.ledger.mints[mint] = &solana.MintInfo{Address: mint, Decimals: 2, MintAuthority: &authority, IsInitialized: true}

		status := h.mint(solanago.NewWallet().PrivateKey).IssueSupply(ctx, IssueRequest{Mint: mint.String(), Amount: 5})

		require.True(t, status.Succeeded(), "cause: %s", status.Cause)
		assert.Equal(t, uint64(500), status.BaseUnits)
		assert.Equal(t, mint.String(), status.Mint)
	})

	t.Run("unknown mint", func(t *testing.T) {
		h := newHarness(t)
		status := h.mint(solanago.NewWallet().PrivateKey).IssueSupply(ctx, IssueRequest{Mint: solanago.NewWallet().PublicKey().String(), Amount: 5})
		assert.Equal(t, KindInvalidInput, status.Kind)
	})

	t.Run("not the mint authority", func(t *testing.T) {
		h := newHarness(t)
		mint := solanago.NewWallet().PublicKey()
		other := solanago.NewWallet().PublicKey()
		h.ledger.mints[mint] = &solana.MintInfo{Address: mint, Decimals: 2, MintAuthority: &other}

		status := h.mint(solanago.NewWallet().PrivateKey).IssueSupply(ctx, IssueRequest{Mint: mint.String(), Amount: 5})
		assert.Equal(t, KindInvalidInput, status.Kind)
		assert.Equal(t, 0, h.signer.count())
	})

	t.Run("decimals mismatch", func(t *testing.T) {
		h := newHarness(t)
		mint := solanago.NewWallet().PublicKey()
		authority := h.key.PublicKey()
		h.ledger.mints[mint] = &solana.MintInfo{Address: mint, Decimals: 2, MintAuthority: &authority}
		decimals := 6

		status := h.mint(solanago.NewWallet().PrivateKey).IssueSupply(ctx, IssueRequest{Mint: mint.String(), Amount: 5, Decimals: &decimals})
		assert.Equal(t, KindInvalidInput, status.Kind)
	})

	t.Run("zero amount", func(t *testing.T) {
		h := newHarness(t)
		status := h.mint(solanago.NewWallet().PrivateKey).IssueSupply(ctx, IssueRequest{Mint: solanago.NewWallet().PublicKey().String()})
		assert.Equal(t, KindInvalidInput, status.Kind)
		assert.Equal(t, 0, h.ledger.callCount())
	})
}

func TestTransferAndMintShareGuard(t *testing.T) {
	h := newHarness(t)
	mintWF := h.mint(solanago.NewWallet().PrivateKey)
	transferWF := h.transfer()

	var transferStatus Status
	h.ledger.onSubmit = func(n int, _ solana.SignedTransaction) {
		if n == 0 {
			transferStatus = transferWF.SendTransfer(context.Background(), TransferRequest{
				To:     solanago.NewWallet().PublicKey().String(),
				Amount: "1",
			})
		}
	}

	status := mintWF.CreateAndIssueMint(context.Background(), validMintRequest())

	require.True(t, status.Succeeded(), "cause: %s", status.Cause)
	assert.Equal(t, KindWorkflowBusy, transferStatus.Kind)
}
