package custodian

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeypairCustodian(t *testing.T) {
	key := solanago.NewWallet().PrivateKey

	raw := make([]int, len(key))
	for i, b := range key {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	kc, err := LoadKeypairCustodian(path, discardLogger())
	require.NoError(t, err)

	addr, ok := kc.ActiveAddress(context.Background())
	require.True(t, ok)
	assert.Equal(t, key.PublicKey(), addr)

	_, err = LoadKeypairCustodian(filepath.Join(t.TempDir(), "missing.json"), discardLogger())
	assert.Error(t, err)
}

func TestKeypairCustodian_LockUnlock(t *testing.T) {
	key := solanago.NewWallet().PrivateKey
	kc := NewKeypairCustodian(key, discardLogger())
	ctx := context.Background()

	kc.Lock()
	_, ok := kc.ActiveAddress(ctx)
	assert.False(t, ok)
	_, err := kc.Sign(ctx, transferTx(t, key.PublicKey()).Tx)
	assert.ErrorIs(t, err, ErrSigningDenied)

	kc.Unlock()
	_, ok = kc.ActiveAddress(ctx)
	assert.True(t, ok)
}

func TestKeypairCustodian_RefusesUnknownInstructions(t *testing.T) {
	key := solanago.NewWallet().PrivateKey
	kc := NewKeypairCustodian(key, discardLogger())

	unknown := solanago.NewInstruction(solanago.NewWallet().PublicKey(), solanago.AccountMetaSlice{
		solanago.Meta(key.PublicKey()).SIGNER().WRITE(),
	}, []byte{9})
	tx, err := solana.NewTransactionBuilder().Build([]solanago.Instruction{unknown}, key.PublicKey(), solana.RecencyAnchor{Blockhash: testBlockhash})
	require.NoError(t, err)

	_, err = kc.Sign(context.Background(), tx.Tx)
	assert.ErrorIs(t, err, ErrSigningUnsupported)
}

func TestKeypairCustodian_RefusesWhenNotASigner(t *testing.T) {
	kc := NewKeypairCustodian(solanago.NewWallet().PrivateKey, discardLogger())

	_, err := kc.Sign(context.Background(), transferTx(t, solanago.NewWallet().PublicKey()).Tx)
	assert.ErrorIs(t, err, ErrSigningUnsupported)
}
