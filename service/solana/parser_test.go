package solana

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTx(t *testing.T, payer solana.PublicKey, ixs ...solana.Instruction) *solana.Transaction {
	t.Helper()
	tx, err := NewTransactionBuilder().Build(ixs, payer, RecencyAnchor{Blockhash: testHash()})
	require.NoError(t, err)
	return tx.Tx
}

func TestDescribeTransaction_NativeTransfer(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	ix, err := NativeTransferInstruction(from, to, 500_000_000)
	require.NoError(t, err)

	summaries, err := DescribeTransaction(buildTx(t, from, ix))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, KindNativeTransfer, s.Kind)
	assert.Equal(t, solana.SystemProgramID, s.Program)
	assert.Equal(t, uint64(500_000_000), s.Amount)
	require.NotNil(t, s.From)
	require.NotNil(t, s.To)
	assert.Equal(t, from, *s.From)
	assert.Equal(t, to, *s.To)
	assert.False(t, HasUnknownInstructions(summaries))
}

func TestDescribeTransaction_MintLifecycle(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	create, err := CreateMintInstructions(payer, mint, 6, 1461600)
	require.NoError(t, err)

	summaries, err := DescribeTransaction(buildTx(t, payer, create...))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, KindCreateAccount, summaries[0].Kind)
	assert.Equal(t, uint64(1461600), summaries[0].Amount)
	assert.Equal(t, mint, *summaries[0].To)

	assert.Equal(t, KindInitializeMint, summaries[1].Kind)
	require.NotNil(t, summaries[1].Decimals)
	assert.Equal(t, uint8(6), *summaries[1].Decimals)
	assert.Equal(t, payer, *summaries[1].Authority)
	assert.Equal(t, mint, *summaries[1].Mint)

	ata, err := DeriveDependentAccount(mint, payer)
	require.NoError(t, err)
	createATA, err := CreateDependentAccountInstruction(payer, payer, mint)
	require.NoError(t, err)
	mintTo, err := MintToInstruction(mint, ata, payer, 1_000_000)
	require.NoError(t, err)

	summaries, err = DescribeTransaction(buildTx(t, payer, createATA, mintTo))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, KindCreateDependent, summaries[0].Kind)
	assert.Equal(t, ata, *summaries[0].To)
	assert.Equal(t, mint, *summaries[0].Mint)

	assert.Equal(t, KindMintTo, summaries[1].Kind)
	assert.Equal(t, uint64(1_000_000), summaries[1].Amount)
	assert.Equal(t, ata, *summaries[1].To)
	assert.Equal(t, payer, *summaries[1].Authority)
}

func TestDescribeTransaction_UnknownProgram(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	unknown := solana.NewInstruction(other, solana.AccountMetaSlice{
		solana.Meta(payer).SIGNER().WRITE(),
	}, []byte{1, 2, 3})

	summaries, err := DescribeTransaction(buildTx(t, payer, unknown))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, KindUnknownOperation, summaries[0].Kind)
	assert.True(t, HasUnknownInstructions(summaries))
}

func TestDescribeTransaction_Nil(t *testing.T) {
	_, err := DescribeTransaction(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
