package db

import (
	"context"
	"testing"
	"time"

	"github.com/brojonat/solwallet/service/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMint      = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testAuthority = "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK"
)

func TestMigrateIsIdempotent(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}

func TestCreateMint(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		m, err := store.CreateMint(ctx, CreateMintParams{
			Address:         testMint,
			Network:         "devnet",
			Name:            "Test Token",
			Symbol:          "TEST",
			Decimals:        6,
			Authority:       testAuthority,
			CreateSignature: "sig-create",
		})
		require.NoError(t, err)

		assert.Equal(t, testMint, m.Address)
		assert.Equal(t, uint8(6), m.Decimals)
		assert.Equal(t, uint64(0), m.IssuedSupply)
		assert.Equal(t, IssueStatePending, m.IssueState)
		assert.WithinDuration(t, time.Now(), m.CreatedAt, 5*time.Second)
	})

	t.Run("create again updates metadata only", func(t *testing.T) {
		m, err := store.CreateMint(ctx, CreateMintParams{
			Address:         testMint,
			Network:         "devnet",
			Name:            "Renamed",
			Symbol:          "REN",
			Decimals:        6,
			Authority:       testAuthority,
			CreateSignature: "sig-other",
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", m.Name)
		assert.Equal(t, "sig-create", m.CreateSignature)
	})

	t.Run("same address on another network is separate", func(t *testing.T) {
		_, err := store.CreateMint(ctx, CreateMintParams{
			Address:         testMint,
			Network:         "mainnet",
			Decimals:        2,
			Authority:       testAuthority,
			CreateSignature: "sig-mainnet",
		})
		require.NoError(t, err)

		mints, err := store.ListMints(ctx, ListMintsParams{Network: "devnet"})
		require.NoError(t, err)
		assert.Len(t, mints, 1)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetMint(ctx, "missing", "devnet")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRecordIssue(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	_, err := store.CreateMint(ctx, CreateMintParams{
		Address:         testMint,
		Network:         "devnet",
		Decimals:        9,
		Authority:       testAuthority,
		CreateSignature: "sig-create",
	})
	require.NoError(t, err)

	m, err := store.RecordIssue(ctx, RecordIssueParams{Mint: testMint, Network: "devnet", Amount: 1_000})
	require.NoError(t, err)
	assert.Equal(t, IssueStateFailed, m.IssueState)
	assert.Equal(t, uint64(0), m.IssuedSupply)

	// Amounts above the int64 range survive the NUMERIC column.
	big := uint64(1) << 63
	m, err = store.RecordIssue(ctx, RecordIssueParams{Mint: testMint, Network: "devnet", Amount: big, Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, IssueStateIssued, m.IssueState)
	assert.Equal(t, big, m.IssuedSupply)

	// A later failure does not demote an issued mint.
	_, err = store.RecordIssue(ctx, RecordIssueParams{Mint: testMint, Network: "devnet", Amount: 5})
	require.NoError(t, err)

	m, err = store.GetMint(ctx, testMint, "devnet")
	require.NoError(t, err)
	assert.Equal(t, IssueStateIssued, m.IssueState)
	assert.Equal(t, big, m.IssuedSupply)

	_, err = store.RecordIssue(ctx, RecordIssueParams{Mint: "missing", Network: "devnet", Amount: 1, Succeeded: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMintRecorder(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	rec := NewMintRecorder(store.Store, "devnet")

	require.NoError(t, rec.RecordMint(ctx, wallet.MintRecord{
		Mint:            testMint,
		Name:            "Test",
		Symbol:          "TST",
		Decimals:        2,
		Authority:       testAuthority,
		CreateSignature: "sig-create",
	}))
	require.NoError(t, rec.RecordIssue(ctx, testMint, wallet.Status{
		Operation:        wallet.OpIssueSupply,
		State:            wallet.StateSucceeded,
		Signature:        "sig-issue",
		DependentAccount: "ata",
		BaseUnits:        500,
	}))

	m, err := store.GetMint(ctx, testMint, "devnet")
	require.NoError(t, err)
	assert.Equal(t, "TST", m.Symbol)
	assert.Equal(t, uint64(500), m.IssuedSupply)
	assert.Equal(t, IssueStateIssued, m.IssueState)
}
