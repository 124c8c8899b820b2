package solana

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	mu sync.Mutex

	blockhash    solana.Hash
	blockhashErr error

	accounts   map[solana.PublicKey]*rpc.Account
	accountErr error

	rentLamports uint64

	sendErr error
	sent    []*solana.Transaction

	// statuses is consumed one per poll; the last entry repeats.
	statuses   []*rpc.SignatureStatusesResult
	statusErrs []error
	polls      int

	calls int
}

func (m *mockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.blockhashErr != nil {
		return nil, m.blockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.blockhash,
			LastValidBlockHeight: 1000,
		},
	}, nil
}

func (m *mockRPCClient) GetAccountInfo(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetAccountInfoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	acct, ok := m.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acct}, nil
}

func (m *mockRPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.rentLamports, nil
}

func (m *mockRPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	m.sent = append(m.sent, tx)
	return tx.Signatures[0], nil
}

func (m *mockRPCClient) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	i := m.polls
	m.polls++
	if i < len(m.statusErrs) && m.statusErrs[i] != nil {
		return nil, m.statusErrs[i]
	}
	if len(m.statuses) == 0 {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{m.statuses[i]}}, nil
}

func (m *mockRPCClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "test", nil, logger)
}

func testHash() solana.Hash {
	return solana.MustHashFromBase58("4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZAMdL4VZHirAn")
}

// signedTransfer returns a signed one-instruction transfer from payer.
func signedTransfer(t *testing.T, payer solana.PrivateKey) SignedTransaction {
	t.Helper()
	ix, err := NativeTransferInstruction(payer.PublicKey(), solana.NewWallet().PublicKey(), 1000)
	require.NoError(t, err)
	tx, err := NewTransactionBuilder().Build([]solana.Instruction{ix}, payer.PublicKey(), RecencyAnchor{Blockhash: testHash()})
	require.NoError(t, err)
	_, err = tx.Tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)
	return SignedTransaction{Tx: tx.Tx}
}

func TestFetchRecencyAnchor(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the latest blockhash", func(t *testing.T) {
		client := newTestClient(&mockRPCClient{blockhash: testHash()})

		anchor, err := client.FetchRecencyAnchor(ctx)
		require.NoError(t, err)
		assert.Equal(t, testHash(), anchor.Blockhash)
		assert.Equal(t, uint64(1000), anchor.LastValidBlockHeight)
		assert.False(t, anchor.FetchedAt.IsZero())
	})

	t.Run("transport failure is network unavailable", func(t *testing.T) {
		mock := &mockRPCClient{blockhashErr: errors.New("dial tcp: connection refused")}
		client := newTestClient(mock)

		_, err := client.FetchRecencyAnchor(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNetworkUnavailable)
		assert.Equal(t, 1, mock.callCount(), "must not retry")
	})
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	payer := solana.NewWallet().PrivateKey

	t.Run("accepted for relay", func(t *testing.T) {
		mock := &mockRPCClient{}
		client := newTestClient(mock)
		signed := signedTransfer(t, payer)

		result, err := client.Submit(ctx, signed)
		require.NoError(t, err)
		assert.Equal(t, signed.Signature(), result.Signature)
		assert.Len(t, mock.sent, 1)
	})

	t.Run("rpc error is rejected by network with reason", func(t *testing.T) {
		mock := &mockRPCClient{sendErr: &jsonrpc.RPCError{
			Code:    -32002,
			Message: "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
			Data: map[string]interface{}{
				"logs": []interface{}{"Program 11111111111111111111111111111111 failed"},
			},
		}}
		client := newTestClient(mock)

		_, err := client.Submit(ctx, signedTransfer(t, payer))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRejectedByNetwork)
		assert.NotErrorIs(t, err, ErrNetworkUnavailable)

		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, -32002, rejected.Code)
		assert.Contains(t, rejected.Reason, "no record of a prior credit")
		assert.Equal(t, []string{"Program 11111111111111111111111111111111 failed"}, rejected.Logs)
	})

	t.Run("transport error is network unavailable", func(t *testing.T) {
		client := newTestClient(&mockRPCClient{sendErr: errors.New("EOF")})

		_, err := client.Submit(ctx, signedTransfer(t, payer))
		assert.ErrorIs(t, err, ErrNetworkUnavailable)
	})

	t.Run("unsigned transaction is invalid input", func(t *testing.T) {
		mock := &mockRPCClient{}
		client := newTestClient(mock)

		_, err := client.Submit(ctx, SignedTransaction{})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, 0, mock.callCount())
	})
}

func TestLookupAccount(t *testing.T) {
	ctx := context.Background()
	present := solana.NewWallet().PublicKey()
	absent := solana.NewWallet().PublicKey()

	mock := &mockRPCClient{accounts: map[solana.PublicKey]*rpc.Account{
		present: {Lamports: 42, Owner: solana.SystemProgramID},
	}}
	client := newTestClient(mock)

	info, err := client.LookupAccount(ctx, present)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint64(42), info.Lamports)
	assert.Equal(t, solana.SystemProgramID, info.Owner)

	info, err = client.LookupAccount(ctx, absent)
	require.NoError(t, err)
	assert.Nil(t, info)

	mock.accountErr = errors.New("503 service unavailable")
	_, err = client.LookupAccount(ctx, present)
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func encodeMint(t *testing.T, m token.Mint) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, m.MarshalWithEncoder(bin.NewBinEncoder(&buf)))
	return buf.Bytes()
}

func TestLookupMint(t *testing.T) {
	ctx := context.Background()
	authority := solana.NewWallet().PublicKey()
	mintAddr := solana.NewWallet().PublicKey()
	notMint := solana.NewWallet().PublicKey()

	data := encodeMint(t, token.Mint{
		MintAuthority: &authority,
		Supply:        5_000_000,
		Decimals:      6,
		IsInitialized: true,
	})

	mock := &mockRPCClient{accounts: map[solana.PublicKey]*rpc.Account{
		mintAddr: {Owner: solana.TokenProgramID, Data: rpc.DataBytesOrJSONFromBytes(data)},
		notMint:  {Owner: solana.SystemProgramID},
	}}
	client := newTestClient(mock)

	info, err := client.LookupMint(ctx, mintAddr)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint64(5_000_000), info.Supply)
	assert.Equal(t, uint8(6), info.Decimals)
	assert.True(t, info.IsInitialized)
	require.NotNil(t, info.MintAuthority)
	assert.Equal(t, authority, *info.MintAuthority)
	assert.Nil(t, info.FreezeAuthority)

	_, err = client.LookupMint(ctx, notMint)
	assert.ErrorIs(t, err, ErrInvalidInput)

	info, err = client.LookupMint(ctx, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestMinimumBalanceForRentExemption(t *testing.T) {
	client := newTestClient(&mockRPCClient{rentLamports: 1461600})

	lamports, err := client.MinimumBalanceForRentExemption(context.Background(), MintAccountSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(1461600), lamports)
}
