package wallet

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brojonat/solwallet/service/custodian"
	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var testBlockhash = solanago.MustHashFromBase58("4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZAMdL4VZHirAn")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger is a scripted in-memory ledger. Submissions are numbered from
// zero; per-submission errors and confirmations can be set up front.
type fakeLedger struct {
	mu sync.Mutex

	anchorErr   error
	rent        uint64
	submitErrs  map[int]error
	confirmErrs map[int]error
	failed      map[int]string
	onSubmit    func(n int, signed solana.SignedTransaction)
	panicOn     string

	accounts map[solanago.PublicKey]bool
	mints    map[solanago.PublicKey]*solana.MintInfo

	submitted []solana.SignedTransaction
	attempts  int
	calls     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		rent:        1461600,
		submitErrs:  map[int]error{},
		confirmErrs: map[int]error{},
		failed:      map[int]string{},
		accounts:    map[solanago.PublicKey]bool{},
		mints:       map[solanago.PublicKey]*solana.MintInfo{},
	}
}

func (f *fakeLedger) call(name string) {
	f.calls++
	if f.panicOn == name {
		panic(name + " exploded")
	}
}

func (f *fakeLedger) FetchRecencyAnchor(ctx context.Context) (solana.RecencyAnchor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("anchor")
	if f.anchorErr != nil {
		return solana.RecencyAnchor{}, f.anchorErr
	}
	return solana.RecencyAnchor{Blockhash: testBlockhash, LastValidBlockHeight: 100}, nil
}

func (f *fakeLedger) Submit(ctx context.Context, signed solana.SignedTransaction) (solana.SubmissionResult, error) {
	f.mu.Lock()
	n := f.attempts
	f.attempts++
	f.call("submit")
	hook := f.onSubmit
	err := f.submitErrs[n]
	f.mu.Unlock()

	if hook != nil {
		hook(n, signed)
	}
	if err != nil {
		return solana.SubmissionResult{}, err
	}

	f.mu.Lock()
	f.submitted = append(f.submitted, signed)
	f.mu.Unlock()
	return solana.SubmissionResult{Signature: signed.Signature()}, nil
}

func (f *fakeLedger) Confirm(ctx context.Context, sig solanago.Signature) (solana.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("confirm")
	n := f.attempts - 1
	if err := f.confirmErrs[n]; err != nil {
		return solana.Confirmation{Signature: sig, Status: solana.StatusPending}, err
	}
	if reason, ok := f.failed[n]; ok {
		return solana.Confirmation{Signature: sig, Status: solana.StatusFailed, Err: reason, Polls: 1}, nil
	}
	return solana.Confirmation{Signature: sig, Status: solana.StatusConfirmed, Slot: 1, Polls: 1}, nil
}

func (f *fakeLedger) LookupAccount(ctx context.Context, address solanago.PublicKey) (*solana.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("lookup")
	if !f.accounts[address] {
		return nil, nil
	}
	return &solana.AccountInfo{Address: address, Owner: solanago.TokenProgramID}, nil
}

func (f *fakeLedger) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("rent")
	return f.rent, nil
}

func (f *fakeLedger) LookupMint(ctx context.Context, mint solanago.PublicKey) (*solana.MintInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("mint")
	return f.mints[mint], nil
}

func (f *fakeLedger) setAccount(pk solanago.PublicKey) {
	f.mu.Lock()
	f.accounts[pk] = true
	f.mu.Unlock()
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLedger) submissions() []solana.SignedTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]solana.SignedTransaction(nil), f.submitted...)
}

// countingSigner wraps a Signer and counts Sign calls.
type countingSigner struct {
	Signer
	mu    sync.Mutex
	signs int
	err   error
}

func (c *countingSigner) Sign(ctx context.Context, tx *solana.Transaction) (solana.SignedTransaction, error) {
	c.mu.Lock()
	c.signs++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return solana.SignedTransaction{}, err
	}
	return c.Signer.Sign(ctx, tx)
}

func (c *countingSigner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signs
}

// recordingObserver keeps every transition.
type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) OnTransition(ctx context.Context, e Event) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *recordingObserver) states() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, len(o.events))
	for i, e := range o.events {
		out[i] = e.State
	}
	return out
}

type harness struct {
	key      solanago.PrivateKey
	keypair  *custodian.KeypairCustodian
	ledger   *fakeLedger
	signer   *countingSigner
	guard    *Guard
	observer *recordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key := solanago.NewWallet().PrivateKey
	kc := custodian.NewKeypairCustodian(key, discardLogger())
	return &harness{
		key:      key,
		keypair:  kc,
		ledger:   newFakeLedger(),
		signer:   &countingSigner{Signer: custodian.NewGateway(kc, nil, discardLogger())},
		guard:    NewGuard(),
		observer: &recordingObserver{},
	}
}

func (h *harness) transfer() *TransferWorkflow {
	return NewTransferWorkflow(h.ledger, h.signer, h.guard, h.observer, nil, discardLogger())
}

func (h *harness) mint(mintKey solanago.PrivateKey) *MintWorkflow {
	return NewMintWorkflow(h.ledger, h.signer, h.guard, h.observer, nil, discardLogger()).
		WithKeyGenerator(func() (solanago.PrivateKey, error) { return mintKey, nil })
}

func instructionKinds(t *testing.T, signed solana.SignedTransaction) []solana.InstructionKind {
	t.Helper()
	summaries, err := solana.DescribeTransaction(signed.Tx)
	require.NoError(t, err)
	kinds := make([]solana.InstructionKind, len(summaries))
	for i, s := range summaries {
		kinds[i] = s.Kind
	}
	return kinds
}

// memoryRecorder is an in-memory MintRecorder.
type memoryRecorder struct {
	mu     sync.Mutex
	mints  []MintRecord
	issues map[string]Status
}

func (m *memoryRecorder) RecordMint(ctx context.Context, rec MintRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints = append(m.mints, rec)
	return nil
}

func (m *memoryRecorder) RecordIssue(ctx context.Context, mint string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issues == nil {
		m.issues = map[string]Status{}
	}
	m.issues[mint] = status
	return nil
}
